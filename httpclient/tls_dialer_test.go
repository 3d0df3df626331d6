package httpclient_test

import (
	"testing"

	utls "github.com/refraction-networking/utls"

	"github.com/arfaz/opbus/httpclient"
)

func TestUTLSDialerNotNil(t *testing.T) {
	d := httpclient.UTLSDialer(utls.HelloChrome_120)
	if d == nil {
		t.Fatal("UTLSDialer returned nil for HelloChrome_120")
	}
}

func TestUTLSDialerHTTP1NotNil(t *testing.T) {
	for _, id := range []utls.ClientHelloID{
		utls.HelloChrome_120,
		utls.HelloChrome_131,
		utls.HelloChrome_Auto,
	} {
		d := httpclient.UTLSDialerHTTP1(id)
		if d == nil {
			t.Errorf("UTLSDialerHTTP1 returned nil for %s", id.Str())
		}
	}
}

func TestNewWithTLSChrome120(t *testing.T) {
	c, err := httpclient.NewWithTLS("", 10e9, utls.HelloChrome_120)
	if err != nil {
		t.Fatalf("NewWithTLS: %v", err)
	}
	if c == nil {
		t.Fatal("NewWithTLS returned nil client")
	}
	if c.Jar == nil {
		t.Error("expected non-nil cookie jar")
	}
}

func TestNewWithTLSInvalidProxy(t *testing.T) {
	_, err := httpclient.NewWithTLS("://bad-proxy", 10e9, utls.HelloChrome_120)
	if err == nil {
		t.Error("expected error for invalid proxy URL")
	}
}
