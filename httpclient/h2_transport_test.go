package httpclient_test

import (
	"net/http"
	"testing"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/arfaz/opbus/httpclient"
)

func TestNewImpersonatedH2TransportNotNil(t *testing.T) {
	rt := httpclient.NewImpersonatedH2Transport(httpclient.H2TransportConfig{})
	if rt == nil {
		t.Fatal("NewImpersonatedH2Transport returned nil")
	}
}

func TestNewImpersonatedH2TransportChrome131(t *testing.T) {
	rt := httpclient.NewImpersonatedH2Transport(httpclient.H2TransportConfig{
		HelloID:         utls.HelloChrome_131,
		IdleConnTimeout: 30 * time.Second,
	})
	if rt == nil {
		t.Fatal("NewImpersonatedH2Transport with Chrome131 returned nil")
	}
}

func TestNewImpersonatedH2TransportImplementsRoundTripper(t *testing.T) {
	rt := httpclient.NewImpersonatedH2Transport(httpclient.H2TransportConfig{})
	var _ http.RoundTripper = rt
}

func TestNewImpersonatedH2TransportAppliesDefaultHeaders(t *testing.T) {
	defaults := httpclient.FromPairs([][2]string{{"X-Default", "1"}})
	rt := httpclient.NewImpersonatedH2Transport(httpclient.H2TransportConfig{Headers: defaults})
	if rt == nil {
		t.Fatal("NewImpersonatedH2Transport returned nil")
	}
}
