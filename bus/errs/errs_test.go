package errs_test

import (
	"errors"
	"testing"

	"github.com/arfaz/opbus/bus/errs"
)

func TestNewWrapsErrAndKind(t *testing.T) {
	underlying := errors.New("boom")
	be := errs.New(errs.IO, underlying)
	if be.Kind != errs.IO {
		t.Errorf("Kind = %v, want %v", be.Kind, errs.IO)
	}
	if !errors.Is(be, underlying) {
		t.Error("expected errors.Is to find the wrapped error via Unwrap")
	}
	if be.Message() != "boom" {
		t.Errorf("Message() = %q, want %q", be.Message(), "boom")
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	be := errs.Newf(errs.Parse, "bad field %q", "count")
	if be.Kind != errs.Parse {
		t.Errorf("Kind = %v, want %v", be.Kind, errs.Parse)
	}
	want := `bad field "count"`
	if be.Message() != want {
		t.Errorf("Message() = %q, want %q", be.Message(), want)
	}
}

func TestErrorStringIncludesKind(t *testing.T) {
	be := errs.New(errs.BadResource, errors.New("no such rid"))
	want := "bad_resource: no such rid"
	if be.Error() != want {
		t.Errorf("Error() = %q, want %q", be.Error(), want)
	}
}

func TestNilUnderlyingErrorProducesKindOnlyMessages(t *testing.T) {
	be := &errs.BusError{Kind: errs.Overflow}
	if be.Error() != "overflow" {
		t.Errorf("Error() = %q, want %q", be.Error(), "overflow")
	}
	if be.Message() != "" {
		t.Errorf("Message() = %q, want empty string", be.Message())
	}
}
