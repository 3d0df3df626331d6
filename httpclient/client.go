// Package httpclient builds the *http.Client the fetch op uses to reach the
// network on the guest's behalf.
package httpclient

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
)

// transportDefaults groups transport-layer knobs set once at construction.
type transportDefaults struct {
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
}

// defaultTransport holds the tuning values used when callers do not supply
// explicit overrides. These numbers are sized for a single host process
// issuing many concurrent fetch ops against a handful of origins.
var defaultTransport = transportDefaults{
	maxIdleConns:        500,
	maxIdleConnsPerHost: 100,
	maxConnsPerHost:     200,
}

// New constructs a *http.Client suitable for the fetch op.
//
//   - proxy: optional proxy URL string, e.g. "http://host:port". Empty means
//     dial direct.
//   - timeout: end-to-end request timeout.
func New(proxy string, timeout time.Duration) (*http.Client, error) {
	transport, err := buildTransport(proxy)
	if err != nil {
		return nil, err
	}

	jar, err := newCookieJar()
	if err != nil {
		return nil, fmt.Errorf("httpclient: create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   timeout,
	}, nil
}

// buildTransport creates an *http.Transport with tuned connection-pool
// limits. If proxy is non-empty it is parsed and attached.
func buildTransport(proxy string) (*http.Transport, error) {
	t := &http.Transport{
		DisableKeepAlives:     false,
		MaxIdleConns:          defaultTransport.maxIdleConns,
		MaxIdleConnsPerHost:   defaultTransport.maxIdleConnsPerHost,
		MaxConnsPerHost:       defaultTransport.maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("httpclient: parse proxy URL %q: %w", proxy, err)
		}
		t.Proxy = http.ProxyURL(proxyURL)
	}

	return t, nil
}

// NewWithTLS is New, but dials TLS connections through uTLS with the given
// ClientHello fingerprint instead of Go's own crypto/tls shape.
func NewWithTLS(proxy string, timeout time.Duration, helloID utls.ClientHelloID) (*http.Client, error) {
	transport, err := buildTransport(proxy)
	if err != nil {
		return nil, err
	}
	transport.DialTLSContext = UTLSDialerHTTP1(helloID)

	jar, err := newCookieJar()
	if err != nil {
		return nil, fmt.Errorf("httpclient: create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   timeout,
	}, nil
}

// newCookieJar creates an in-memory cookie jar without a public-suffix list.
func newCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return jar, nil
}
