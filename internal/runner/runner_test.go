package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRunner() *Runner {
	return New(zerolog.Nop())
}

func TestRunCapturesOutput(t *testing.T) {
	r := newTestRunner()

	res, err := r.Run(context.Background(), 5*time.Second, "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Output, "hello") {
		t.Errorf("expected output to contain 'hello', got %q", res.Output)
	}
	if res.TimedOut {
		t.Error("unexpected timeout")
	}
}

func TestRunCapturesStderr(t *testing.T) {
	r := newTestRunner()

	res, err := r.Run(context.Background(), 5*time.Second, "sh", "-c", "echo oops >&2")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(res.Output, "oops") {
		t.Errorf("expected combined output to contain stderr, got %q", res.Output)
	}
}

func TestRunNonzeroExit(t *testing.T) {
	r := newTestRunner()

	res, err := r.Run(context.Background(), 5*time.Second, "sh", "-c", "exit 3")
	if err != nil {
		t.Fatalf("nonzero exit should not be an error at this layer: %v", err)
	}

	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if res.TimedOut {
		t.Error("unexpected timeout")
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	r := newTestRunner()

	start := time.Now()
	res, err := r.Run(context.Background(), 200*time.Millisecond, "sleep", "10")
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("timeout should be reported on the result, not as an error: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut to be set")
	}
	if elapsed > 5*time.Second {
		t.Errorf("process was not killed promptly, took %v", elapsed)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := newTestRunner()

	_, err := r.Run(context.Background(), time.Second, "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
}
