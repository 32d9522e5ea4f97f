package locator

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const unitsBody = `[
  {"id":"W100","type":"WARD","name":"Alpine 1st Ward","typeDisplay":"Ward","organizationType":{"id":4,"code":"WARD","display":"Ward"}},
  {"id":"S200","type":"STAKE","name":"Alpine Utah Stake","typeDisplay":"Stake","organizationType":{"id":5,"code":"STAKE","display":"Stake"}}
]`

const anchorsBody = `[
  {"id":"S200","name":"Alpine Utah Stake","associated":[
    {"id":"W100","name":"Alpine 1st Ward","organizationType":{"display":"Ward"}},
    {"id":"W101","name":"Alpine 2nd Ward","organizationType":{"display":"Ward"}}
  ]}
]`

const loginBody = `<!DOCTYPE html>
<html>
<head><title>Sign In</title></head>
<body>
<script src="https://id.churchofjesuschrist.org/assets/login.js"></script>
<script>runLoginPage({});</script>
</body>
</html>`

// newTestClient seeds the jitter source and swaps the sleeper for a
// recorder so backoff tests finish instantly.
func newTestClient(endpoint string) (*Client, *[]time.Duration) {
	c := NewClient(endpoint, "https://maps.example.org/")
	c.rng = rand.New(rand.NewSource(1))
	pauses := new([]time.Duration)
	c.sleep = func(d time.Duration) { *pauses = append(*pauses, d) }
	return c, pauses
}

func fetchErr(t *testing.T, err error) *FetchError {
	t.Helper()
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected a *FetchError, got %T: %v", err, err)
	}
	return ferr
}

func TestIdentifyReturnsUnits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept header = %q", got)
		}
		if got := r.Header.Get("Referer"); got != "https://maps.example.org/" {
			t.Errorf("Referer header = %q", got)
		}
		if got := r.URL.RawQuery; got != "layers=WARDS%2CBRANCHES&filters=&coordinates=7.5,2.5&nearest=500" {
			t.Errorf("query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, unitsBody)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	found, err := c.Identify(Query{Layer: "WARDS,BRANCHES", Lat: 2.5, Lon: 7.5, Nearest: 500})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 units, got %d", len(found))
	}
	if found[0].ID != "W100" || found[0].Name != "Alpine 1st Ward" {
		t.Errorf("unexpected first unit: %+v", found[0])
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single request, got %d", got)
	}
}

func TestIdentifyBacksOffOnRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, unitsBody)
	}))
	defer srv.Close()

	c, pauses := newTestClient(srv.URL)
	found, err := c.Identify(Query{Layer: "WARDS", Nearest: 50})
	if err != nil {
		t.Fatalf("expected the fourth request to succeed, got %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 units, got %d", len(found))
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected exactly 4 requests, got %d", got)
	}
	if len(*pauses) != 3 {
		t.Fatalf("expected 3 backoff pauses, got %d", len(*pauses))
	}
	for i, d := range *pauses {
		lo := 100 * time.Millisecond << uint(i)
		hi := 500 * time.Millisecond << uint(i)
		if d < lo || d >= hi {
			t.Errorf("pause %d = %v, want within [%v, %v)", i, d, lo, hi)
		}
	}
}

func TestIdentifyRateLimitExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, pauses := newTestClient(srv.URL)
	_, err := c.Identify(Query{Layer: "WARDS", Nearest: 50})
	ferr := fetchErr(t, err)
	if ferr.Kind != KindRateLimited {
		t.Errorf("Kind = %v, want %v", ferr.Kind, KindRateLimited)
	}
	if ferr.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", ferr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 4 {
		t.Errorf("expected 4 requests before giving up, got %d", got)
	}
	if len(*pauses) != 3 {
		t.Errorf("expected 3 backoff pauses, got %d", len(*pauses))
	}
}

func TestIdentifyRetriesMalformedOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, "upstream proxy garbage")
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.Identify(Query{Layer: "WARDS", Nearest: 50})
	ferr := fetchErr(t, err)
	if ferr.Kind != KindMalformed {
		t.Errorf("Kind = %v, want %v", ferr.Kind, KindMalformed)
	}
	if ferr.LoginRedirect {
		t.Error("plain garbage should not be flagged as a login redirect")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}
}

func TestIdentifyFlagsLoginRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, loginBody)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.Identify(Query{Layer: "WARDS", Nearest: 50})
	ferr := fetchErr(t, err)
	if ferr.Kind != KindMalformed {
		t.Errorf("Kind = %v, want %v", ferr.Kind, KindMalformed)
	}
	if !ferr.LoginRedirect {
		t.Error("expected the login redirect flag")
	}
	if ferr.Title != "Sign In" {
		t.Errorf("Title = %q, want %q", ferr.Title, "Sign In")
	}
}

func TestIdentifyRecoversAfterOneMalformedBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, loginBody)
			return
		}
		fmt.Fprint(w, unitsBody)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	found, err := c.Identify(Query{Layer: "WARDS", Nearest: 50})
	if err != nil {
		t.Fatalf("expected the retry to succeed, got %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 units, got %d", len(found))
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 requests, got %d", got)
	}
}

func TestIdentifyFailsFastOnOtherStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	_, err := c.Identify(Query{Layer: "WARDS", Nearest: 50})
	ferr := fetchErr(t, err)
	if ferr.Kind != KindHTTPStatus {
		t.Errorf("Kind = %v, want %v", ferr.Kind, KindHTTPStatus)
	}
	if ferr.StatusCode != 502 {
		t.Errorf("StatusCode = %d, want 502", ferr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single request, got %d", got)
	}
}

func TestIdentifyRetriesConnectionOnce(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	var accepts int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&accepts, 1)
			conn.Close()
		}
	}()

	c, _ := newTestClient("http://" + ln.Addr().String())
	_, err = c.Identify(Query{Layer: "WARDS", Nearest: 50})
	ferr := fetchErr(t, err)
	if ferr.Kind != KindTransport {
		t.Fatalf("Kind = %v, want %v", ferr.Kind, KindTransport)
	}
	if got := atomic.LoadInt32(&accepts); got != 2 {
		t.Errorf("expected 2 connection attempts, got %d", got)
	}
}

func TestIdentifyFlattensAssociatedAnchors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "layers=STAKES&filters=&associated=WARDS%2CBRANCHES&coordinates=-111.891,40.875&nearest=1000" {
			t.Errorf("query = %q", got)
		}
		fmt.Fprint(w, anchorsBody)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	found, err := c.Identify(Query{
		Layer:      "STAKES",
		Associated: "WARDS,BRANCHES",
		Lat:        40.875,
		Lon:        -111.891,
		Nearest:    1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 associated units, got %d", len(found))
	}
	if found[0].ID != "W100" || found[1].ID != "W101" {
		t.Errorf("unexpected units: %+v", found)
	}
}

func TestBuildURL(t *testing.T) {
	c := NewClient("https://maps.example.org/identify", "")

	got := c.buildURL(Query{Layer: "WARDS", Lat: 2.5, Lon: 7.5, Nearest: 500})
	want := "https://maps.example.org/identify?layers=WARDS&filters=&coordinates=7.5,2.5&nearest=500"
	if got != want {
		t.Errorf("buildURL = %q, want %q", got, want)
	}

	got = c.buildURL(Query{Layer: "STAKES", Associated: "WARDS", Lat: -31.95, Lon: 115.86, Nearest: 1000})
	want = "https://maps.example.org/identify?layers=STAKES&filters=&associated=WARDS&coordinates=115.86,-31.95&nearest=1000"
	if got != want {
		t.Errorf("buildURL = %q, want %q", got, want)
	}
}
