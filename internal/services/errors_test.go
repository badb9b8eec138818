package services_test

import (
	"errors"
	"strings"
	"testing"

	"linkhaul/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrUpstream, "extract", "fetch", "page unavailable", base)
	if !errors.Is(err, services.ErrUpstream) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract", "fetch", "page unavailable"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"not_found":  services.NotFound("download", 3),
		"validation": services.Wrap(services.ErrValidation, "containers", "create", "url required", nil),
		"upstream":   services.Wrap(services.ErrUpstream, "extract", "", "", errors.New("502")),
		"internal":   errors.New("disk full"),
	}
	for want, err := range cases {
		if got := services.ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
	if got := services.ErrorKind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}
