package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"

	utls "github.com/refraction-networking/utls"
)

// Chrome 120 HTTP/2 SETTINGS frame values, captured from a real client.
const (
	chrome120H2HeaderTableSize   uint32 = 65536
	chrome120H2InitialWindowSize int32  = 6291456
	chrome120H2ConnWindowSize    int32  = 15663105
	chrome120H2MaxHeaderListSize uint32 = 262144
)

// H2TransportConfig groups the tunable parameters for NewImpersonatedH2Transport.
type H2TransportConfig struct {
	// HelloID is the uTLS ClientHello fingerprint to use for TLS. Defaults
	// to utls.HelloChrome_120 when zero.
	HelloID utls.ClientHelloID

	// Headers is applied to every outgoing request as the base layer,
	// before the caller's own headers are overlaid on top. Pass nil to
	// skip header impersonation and send only the caller's headers.
	Headers *OrderedHeader

	IdleConnTimeout time.Duration
	PingTimeout     time.Duration
	ReadIdleTimeout time.Duration
}

// NewImpersonatedH2Transport returns an http.RoundTripper that negotiates
// HTTP/2 with the given uTLS fingerprint and SETTINGS profile, and applies
// cfg.Headers as a default header layer under the caller's own headers.
func NewImpersonatedH2Transport(cfg H2TransportConfig) http.RoundTripper {
	if cfg.HelloID == (utls.ClientHelloID{}) {
		cfg.HelloID = utls.HelloChrome_120
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}

	dialFn := UTLSDialer(cfg.HelloID)

	h2t := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
			return dialFn(ctx, network, addr, tlsCfg)
		},
		MaxDecoderHeaderTableSize: chrome120H2HeaderTableSize,
		MaxEncoderHeaderTableSize: chrome120H2HeaderTableSize,
		MaxHeaderListSize:         chrome120H2MaxHeaderListSize,
		DisableCompression:        false,
		IdleConnTimeout:           cfg.IdleConnTimeout,
		PingTimeout:               cfg.PingTimeout,
		ReadIdleTimeout:           cfg.ReadIdleTimeout,
	}

	return &impersonatedRoundTripper{h2: h2t, defaults: cfg.Headers}
}

// impersonatedRoundTripper applies a default ordered-header layer to every
// request before forwarding it to the underlying HTTP/2 transport.
type impersonatedRoundTripper struct {
	h2       *http2.Transport
	defaults *OrderedHeader
}

// RoundTrip clones the incoming request, applies the default headers
// (preserving exact casing), re-overlays the caller's own headers on top so
// they win — a default whose name matches a caller header case-insensitively
// is dropped — and delegates to the underlying transport.
func (t *impersonatedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.defaults == nil {
		return t.h2.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	callerHeaders := r.Header
	t.defaults.ApplyToRequest(r)
	for key := range callerHeaders {
		canon := http.CanonicalHeaderKey(key)
		for k := range r.Header {
			if http.CanonicalHeaderKey(k) == canon {
				delete(r.Header, k)
			}
		}
	}
	for key, vals := range callerHeaders {
		r.Header[key] = append([]string(nil), vals...)
	}
	return t.h2.RoundTrip(r)
}
