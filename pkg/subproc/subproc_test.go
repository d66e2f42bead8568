package subproc

import (
	"context"
	"strings"
	"testing"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	e := New()
	result := e.Run(context.Background(), Request{Code: "echo hello", TimeoutSeconds: 5})

	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Fatalf("stdout = %q, want hello", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exitCode = %d, want 0", result.ExitCode)
	}
	if result.ExecutionTimeMs < 0 {
		t.Fatalf("executionTimeMs = %d, want >= 0", result.ExecutionTimeMs)
	}
}

func TestRunCapturesNonZeroExitCode(t *testing.T) {
	e := New()
	result := e.Run(context.Background(), Request{Code: "exit 3", TimeoutSeconds: 5})

	if result.ExitCode != 3 {
		t.Fatalf("exitCode = %d, want 3", result.ExitCode)
	}
}

func TestRunEnforcesTimeout(t *testing.T) {
	e := New()
	result := e.Run(context.Background(), Request{Code: "sleep 5", TimeoutSeconds: 1})

	if result.ExitCode >= 0 {
		t.Fatalf("exitCode = %d, want negative (timeout)", result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "timed out") {
		t.Fatalf("stderr = %q, want timeout marker", result.Stderr)
	}
}

func TestInvokeRoundTripsJSON(t *testing.T) {
	e := New()
	reqJSON := `{"code":"echo hi","timeoutSeconds":5}`

	out, err := e.Invoke(context.Background(), reqJSON)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out, `"stdout"`) {
		t.Fatalf("out = %q, want JSON with stdout field", out)
	}
}

func TestInvokeRejectsMalformedRequest(t *testing.T) {
	e := New()
	_, err := e.Invoke(context.Background(), "not json")
	if err == nil {
		t.Fatalf("Invoke: want error for malformed request")
	}
}
