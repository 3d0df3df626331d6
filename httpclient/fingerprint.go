// Profiles describing the browser-impersonation signals the fetch op can
// apply to an outgoing request: the uTLS ClientHello fingerprint, the HTTP/2
// SETTINGS shape, and the header set/order that normally accompanies them.
//
// Advanced perimeter proxies correlate the TLS ClientHello (JA3), the HTTP/2
// SETTINGS frame, and the header set to flag automated clients. Sending a
// Chrome-shaped ClientHello alongside a bare Go User-Agent (or vice versa) is
// itself a signal, so Profile bundles all three so the fetch op applies them
// together or not at all.
package httpclient

import (
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// Profile bundles the correlated impersonation signals used by the fetch op
// when the bus configuration's impersonation_profile names a browser profile
// instead of the stdlib default transport.
type Profile struct {
	// HelloID selects the uTLS ClientHello fingerprint (see UTLSDialer).
	HelloID utls.ClientHelloID

	// UserAgent is injected as the "User-Agent" header on every request.
	UserAgent string

	// DefaultHeaders are applied by NewImpersonatedH2Transport for requests
	// that don't already set the same header.
	DefaultHeaders *OrderedHeader
}

// ChromeProfile mimics Chrome 120 on Windows.
func ChromeProfile() *Profile {
	h := FromPairs([][2]string{
		{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"},
		{"Accept-Language", "en-US,en;q=0.9"},
		{"Accept-Encoding", "gzip, deflate, br"},
		{"Sec-Ch-Ua", `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`},
		{"Sec-Ch-Ua-Mobile", "?0"},
		{"Sec-Ch-Ua-Platform", `"Windows"`},
		{"Sec-Fetch-Dest", "document"},
		{"Sec-Fetch-Mode", "navigate"},
		{"Sec-Fetch-Site", "none"},
		{"Upgrade-Insecure-Requests", "1"},
	})
	return &Profile{
		HelloID: utls.HelloChrome_120,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/120.0.0.0 Safari/537.36",
		DefaultHeaders: h,
	}
}

// FirefoxProfile mimics Firefox 121 on Windows.
func FirefoxProfile() *Profile {
	h := FromPairs([][2]string{
		{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		{"Accept-Language", "en-US,en;q=0.5"},
		{"Accept-Encoding", "gzip, deflate, br"},
		{"Upgrade-Insecure-Requests", "1"},
		{"Sec-Fetch-Dest", "document"},
		{"Sec-Fetch-Mode", "navigate"},
		{"Sec-Fetch-Site", "none"},
		{"Sec-Fetch-User", "?1"},
	})
	return &Profile{
		HelloID: utls.HelloFirefox_120,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) " +
			"Gecko/20100101 Firefox/121.0",
		DefaultHeaders: h,
	}
}

// NewTransport builds the http.RoundTripper this profile should be fetched
// through: an H2-capable transport dialing via the profile's uTLS fingerprint
// with the profile's headers applied as request defaults.
func (p *Profile) NewTransport() http.RoundTripper {
	return NewImpersonatedH2Transport(H2TransportConfig{
		HelloID: p.HelloID,
		Headers: p.DefaultHeaders,
	})
}
