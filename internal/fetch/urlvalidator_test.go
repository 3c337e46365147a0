package fetch

import (
	"context"
	"testing"
)

func TestURLValidatorRejectsDisallowedScheme(t *testing.T) {
	v := NewURLValidator()
	if err := v.Validate(context.Background(), "ftp://example.com/feed.xml"); err == nil {
		t.Fatal("expected ftp scheme to be rejected")
	}
}

func TestURLValidatorRejectsLoopbackLiteral(t *testing.T) {
	v := NewURLValidator()
	if err := v.Validate(context.Background(), "http://127.0.0.1/feed.xml"); err == nil {
		t.Fatal("expected loopback address to be rejected")
	}
}

func TestURLValidatorRejectsPrivateLiteral(t *testing.T) {
	v := NewURLValidator()
	if err := v.Validate(context.Background(), "http://10.1.2.3/feed.xml"); err == nil {
		t.Fatal("expected RFC 1918 address to be rejected")
	}
}

func TestURLValidatorRejectsMissingHost(t *testing.T) {
	v := NewURLValidator()
	if err := v.Validate(context.Background(), "https:///feed.xml"); err == nil {
		t.Fatal("expected URL with no host to be rejected")
	}
}
