package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes each conversation's final report to
// <dir>/<conversationID>.txt, satisfying Sink: one file per run under a
// project-relative directory.
type FileSink struct {
	Dir string
}

// WriteResult writes text to <Dir>/<conversationID>.txt, creating Dir if
// necessary.
func (s FileSink) WriteResult(_ context.Context, conversationID, text string) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("report: create sink directory: %w", err)
	}
	path := filepath.Join(s.Dir, conversationID+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}
