package extproc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRun_CapturesStdout(t *testing.T) {
	out, err := Run(context.Background(), 5*time.Second, "echo hello world")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "hello world" {
		t.Errorf("stdout = %q, want %q", got, "hello world")
	}
}

func TestRun_ExtraArgs(t *testing.T) {
	out, err := Run(context.Background(), 5*time.Second, "echo hello", "again")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "hello again" {
		t.Errorf("stdout = %q, want %q", got, "hello again")
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	_, err := Run(context.Background(), 5*time.Second, "sh -c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	var procErr *Error
	if !errors.As(err, &procErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if procErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", procErr.ExitCode)
	}
	if !strings.Contains(procErr.Stderr, "boom") {
		t.Errorf("stderr %q does not contain %q", procErr.Stderr, "boom")
	}
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), 100*time.Millisecond, "sleep 10")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("command was not killed by timeout (took %s)", elapsed)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), time.Second, "   ")
	if err == nil {
		t.Fatal("expected error for empty command")
	}
}
