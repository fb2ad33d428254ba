package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGet_EmptyBeforeRefresh(t *testing.T) {
	p := NewProvider("echo tok", time.Second, time.Hour)
	if got := p.Get(); got != "" {
		t.Errorf("Get before refresh = %q, want empty", got)
	}
}

func TestRefresh_CachesTrimmedToken(t *testing.T) {
	p := NewProvider("echo  secret-token  ", 5*time.Second, time.Hour)

	tok, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tok != "secret-token" {
		t.Errorf("Refresh = %q, want %q", tok, "secret-token")
	}
	if got := p.Get(); got != "secret-token" {
		t.Errorf("Get after refresh = %q, want %q", got, "secret-token")
	}
}

func TestRefresh_FailureKeepsPreviousToken(t *testing.T) {
	p := NewProvider("echo first", 5*time.Second, time.Hour)
	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// Point at a failing command; the cached value must survive.
	p.command = "false"
	if _, err := p.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error from failing command")
	}
	if got := p.Get(); got != "first" {
		t.Errorf("Get after failed refresh = %q, want %q", got, "first")
	}
}

func TestRefresh_EmptyOutputIsError(t *testing.T) {
	p := NewProvider("echo", 5*time.Second, time.Hour)
	_, err := p.Refresh(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Refresh with empty output: err = %v, want ErrNoToken", err)
	}
}

func TestEnsure_RefreshesWhenUncached(t *testing.T) {
	p := NewProvider("echo lazily-fetched", 5*time.Second, time.Hour)

	tok, err := p.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if tok != "lazily-fetched" {
		t.Errorf("Ensure = %q, want %q", tok, "lazily-fetched")
	}
}

func TestEnsure_FailsWhenNothingAvailable(t *testing.T) {
	p := NewProvider("false", time.Second, time.Hour)
	_, err := p.Ensure(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Ensure = %v, want ErrNoToken", err)
	}
	// The command failure stays visible alongside the sentinel.
	if err == nil || !strings.Contains(err.Error(), "false") {
		t.Errorf("Ensure error %v does not mention the failing command", err)
	}
}
