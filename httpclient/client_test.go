package httpclient_test

import (
	"testing"
	"time"

	"github.com/arfaz/opbus/httpclient"
)

func TestNewDirect(t *testing.T) {
	c, err := httpclient.New("", 5*time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Jar == nil {
		t.Error("expected a non-nil cookie jar")
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
}

func TestNewRejectsInvalidProxyURL(t *testing.T) {
	_, err := httpclient.New("://bad", time.Second)
	if err == nil {
		t.Fatal("expected error for invalid proxy URL")
	}
}

func TestNewWithValidProxy(t *testing.T) {
	c, err := httpclient.New("http://127.0.0.1:8080", time.Second)
	if err != nil {
		t.Fatalf("New with proxy: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil client")
	}
}
