package locator

import "fmt"

// ErrorKind classifies why a cell query gave up.
type ErrorKind int

const (
	// KindTransport is a connection-level failure that survived the one
	// immediate retry.
	KindTransport ErrorKind = iota
	// KindRateLimited is a 429 that survived every backoff retry.
	KindRateLimited
	// KindMalformed is a 200 whose body was not JSON, possibly a disguised
	// login redirect.
	KindMalformed
	// KindHTTPStatus is any other non-200 status, surfaced without retry.
	KindHTTPStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindMalformed:
		return "malformed_response"
	case KindHTTPStatus:
		return "http_status"
	}
	return "unknown"
}

// FetchError is the terminal failure of a single cell query. The harvester
// logs it and moves on; it never aborts a run.
type FetchError struct {
	Kind          ErrorKind
	URL           string
	StatusCode    int    // set for KindRateLimited and KindHTTPStatus
	Title         string // page <title> when a malformed body parses as HTML
	LoginRedirect bool   // malformed body looked like the SSO login shell
	Err           error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindTransport:
		return fmt.Sprintf("connection to %s failed after retry: %v", e.URL, e.Err)
	case KindRateLimited:
		return fmt.Sprintf("rate limited at %s, gave up after %d retries", e.URL, RATE_LIMIT_MAX_RETRIES)
	case KindMalformed:
		if e.LoginRedirect {
			return fmt.Sprintf("redirected to login page at %s", e.URL)
		}
		if e.Title != "" {
			return fmt.Sprintf("non-JSON response from %s (page title %q)", e.URL, e.Title)
		}
		if e.Err != nil {
			return fmt.Sprintf("malformed response from %s: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("malformed response from %s", e.URL)
	case KindHTTPStatus:
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch failed at %s", e.URL)
}

func (e *FetchError) Unwrap() error { return e.Err }
