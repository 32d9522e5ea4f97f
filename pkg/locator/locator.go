package locator

import (
	"context"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/unitscope/unitscope/internal/utils"
	"github.com/unitscope/unitscope/pkg/units"
)

const (
	DEFAULT_ENDPOINT = "https://maps.churchofjesuschrist.org/api/maps-proxy/v2/locations/identify"
	DEFAULT_REFERER  = "https://maps.churchofjesuschrist.org/"
	USER_AGENT       = "Mozilla/5.0 (X11; Linux x86_64; rv:82.0) Gecko/20100101 Firefox/82.0"

	RATE_LIMIT_HTTP_STATUS = 429
	// Backoff retries after the first 429. A query is attempted at most
	// four times before it fails as rate limited.
	RATE_LIMIT_MAX_RETRIES = 3
)

// Query is a single identify call: a coordinate, a result cap and the layer
// filters to apply. A non-empty Associated switches the response to the
// anchor form, where the units ride along inside each anchor's associated
// array.
type Query struct {
	Layer      string
	Filters    string
	Associated string
	Lat        float64
	Lon        float64
	Nearest    int
}

// Client fetches units from the identify endpoint. It is safe for
// concurrent use by the harvester workers; retry state is scoped to a
// single Identify call.
type Client struct {
	Endpoint     string
	Referer      string
	LoginMarkers []string // defaults to DefaultLoginMarkers when empty

	http  *retryablehttp.Client
	sleep func(time.Duration)

	mu  sync.Mutex // guards rng, *rand.Rand is not goroutine safe
	rng *rand.Rand
}

// NewClient returns a Client against the given endpoint. Empty endpoint or
// referer fall back to the production locator. The underlying transport
// retries a failed connection exactly once, immediately; every other retry
// decision belongs to Identify.
func NewClient(endpoint, referer string) *Client {
	if endpoint == "" {
		endpoint = DEFAULT_ENDPOINT
	}
	if referer == "" {
		referer = DEFAULT_REFERER
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 1
	retryClient.CheckRetry = func(_ context.Context, _ *http.Response, err error) (bool, error) {
		// Only connection-level failures, never status codes.
		return err != nil, nil
	}
	retryClient.Backoff = func(_, _ time.Duration, _ int, _ *http.Response) time.Duration {
		return 0
	}

	return &Client{
		Endpoint: endpoint,
		Referer:  referer,
		http:     retryClient,
		sleep:    time.Sleep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Identify runs one cell query and returns the decoded units. 429s back off
// exponentially up to RATE_LIMIT_MAX_RETRIES times, a non-JSON 200 is
// retried once in case it was a transient login redirect, and any other
// non-200 status fails straight away.
func (c *Client) Identify(q Query) ([]units.Unit, error) {
	reqURL := c.buildURL(q)

	rateRetries := 0
	retriedMalformed := false

	for {
		status, body, err := c.do(reqURL)
		if err != nil {
			return nil, &FetchError{Kind: KindTransport, URL: reqURL, Err: err}
		}

		switch {
		case status == RATE_LIMIT_HTTP_STATUS:
			if rateRetries >= RATE_LIMIT_MAX_RETRIES {
				return nil, &FetchError{Kind: KindRateLimited, URL: reqURL, StatusCode: status}
			}
			delay := c.delay(rateRetries)
			utils.Log.Info("Rate limited, sleeping ", delay.Round(time.Millisecond), " before retrying: ", reqURL)
			c.sleep(delay)
			rateRetries++

		case status != http.StatusOK:
			return nil, &FetchError{Kind: KindHTTPStatus, URL: reqURL, StatusCode: status}

		case !gjson.ValidBytes(body):
			login := looksLikeLoginPage(string(body), c.LoginMarkers)
			if !retriedMalformed {
				retriedMalformed = true
				if login {
					utils.Log.Warn("Got login page instead of JSON, retrying once: ", reqURL)
				} else {
					utils.Log.Warn("Got non-JSON response, retrying once: ", reqURL)
				}
				continue
			}
			return nil, &FetchError{
				Kind:          KindMalformed,
				URL:           reqURL,
				LoginRedirect: login,
				Title:         htmlTitle(string(body)),
			}

		default:
			if q.Associated != "" {
				anchors, aerr := units.ParseAssociated(body)
				if aerr != nil {
					return nil, &FetchError{Kind: KindMalformed, URL: reqURL, Err: aerr}
				}
				return anchors, nil
			}
			found, perr := units.ParseBody(body)
			if perr != nil {
				return nil, &FetchError{Kind: KindMalformed, URL: reqURL, Err: perr}
			}
			return found, nil
		}
	}
}

func (c *Client) do(reqURL string) (int, []byte, error) {
	req, err := retryablehttp.NewRequest("GET", reqURL, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", c.Referer)
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) delay(attempt int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return backoffDelay(attempt, c.rng)
}

// buildURL renders the identify query string the way the maps frontend
// sends it: layers and filters always present even when empty, associated
// only for anchor queries, coordinates as lon,lat.
func (c *Client) buildURL(q Query) string {
	u := c.Endpoint + "?layers=" + url.QueryEscape(q.Layer) + "&filters=" + url.QueryEscape(q.Filters)
	if q.Associated != "" {
		u += "&associated=" + url.QueryEscape(q.Associated)
	}
	return u + "&coordinates=" + formatCoord(q.Lon) + "," + formatCoord(q.Lat) + "&nearest=" + strconv.Itoa(q.Nearest)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
