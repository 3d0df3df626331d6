package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	utls "github.com/refraction-networking/utls"
)

// UTLSDialer returns a DialTLSContext-compatible function that performs the
// TLS handshake via uTLS, presenting the ClientHello fingerprint described
// by helloID instead of Go's own crypto/tls shape. This lets the fetch op
// optionally negotiate TLS the way a real browser would, for targets that
// behave differently toward Go's default TLS stack.
//
// The returned dialer is safe for concurrent use and wires directly into
// http2.Transport.DialTLSContext; use UTLSDialerHTTP1 for
// http.Transport.DialTLSContext.
func UTLSDialer(helloID utls.ClientHelloID) func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
	return func(ctx context.Context, network, addr string, tlsCfg *tls.Config) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("httpclient: utls dialer: parse addr %q: %w", addr, err)
		}
		sni := host
		if tlsCfg != nil && tlsCfg.ServerName != "" {
			sni = tlsCfg.ServerName
		}

		var d net.Dialer
		rawConn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("httpclient: utls dialer: dial %s: %w", addr, err)
		}

		uCfg := &utls.Config{
			ServerName:         sni,
			InsecureSkipVerify: tlsCfg != nil && tlsCfg.InsecureSkipVerify,
		}

		uConn := utls.UClient(rawConn, uCfg, helloID)

		spec := buildClientHelloSpec(helloID)
		if err := uConn.ApplyPreset(&spec); err != nil {
			_ = rawConn.Close()
			return nil, fmt.Errorf("httpclient: utls dialer: apply preset for %s: %w", helloID.Str(), err)
		}

		if err := uConn.HandshakeContext(ctx); err != nil {
			_ = uConn.Close()
			return nil, fmt.Errorf("httpclient: utls dialer: TLS handshake with %s: %w", addr, err)
		}

		return uConn, nil
	}
}

// UTLSDialerHTTP1 is UTLSDialer's counterpart for http.Transport.DialTLSContext,
// which has no *tls.Config parameter; SNI is derived solely from addr.
func UTLSDialerHTTP1(helloID utls.ClientHelloID) func(ctx context.Context, network, addr string) (net.Conn, error) {
	inner := UTLSDialer(helloID)
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return inner(ctx, network, addr, nil)
	}
}

// buildClientHelloSpec returns the ClientHelloSpec for helloID. Recognised
// Chrome IDs use utls's parrot table verbatim; anything else falls back to
// the library's own default spec.
func buildClientHelloSpec(helloID utls.ClientHelloID) utls.ClientHelloSpec {
	switch helloID {
	case utls.HelloChrome_120,
		utls.HelloChrome_120_PQ,
		utls.HelloChrome_131,
		utls.HelloChrome_Auto:
		spec, err := utls.UTLSIdToSpec(helloID)
		if err == nil {
			return spec
		}
	}
	return utls.ClientHelloSpec{}
}
