package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkWritesReportFile(t *testing.T) {
	dir := t.TempDir()
	sink := FileSink{Dir: filepath.Join(dir, "reports")}

	if err := sink.WriteResult(context.Background(), "conv-1", "=== SUCCESS ===\n"); err != nil {
		t.Fatalf("WriteResult: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "reports", "conv-1.txt"))
	if err != nil {
		t.Fatalf("read report file: %v", err)
	}
	if string(data) != "=== SUCCESS ===\n" {
		t.Fatalf("report contents = %q", string(data))
	}
}
