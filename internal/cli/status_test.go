package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunStatus_PrintsRecords(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs", "conversation_logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	lines := `{"type":"stage_completed","level":"INFO","agent_name":"ingest","message":"stage \"validate-topic\" completed","timestamp":"2026-01-01T00:00:00Z","stage_name":"validate-topic","duration_ms":2}
{"type":"message_summary","level":"INFO","agent_name":"report","message":"conversation complete","timestamp":"2026-01-01T00:00:01Z"}
`
	if err := os.WriteFile(filepath.Join(logDir, "conv-1.jsonl"), []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runStatus([]string{"-log-dir", filepath.Join(dir, "logs"), "conv-1"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "validate-topic") {
		t.Errorf("expected stage name in output, got: %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), "conversation complete") {
		t.Errorf("expected message summary in output, got: %s", stdout.String())
	}
}

func TestRunStatus_MissingConversation(t *testing.T) {
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runStatus([]string{"-log-dir", filepath.Join(dir, "logs"), "does-not-exist"})
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestRunStatus_NoConversationID(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New(&stdout, &stderr)

	code := app.runStatus(nil)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}
