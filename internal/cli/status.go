package cli

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// statusRecord mirrors the fields of obs.Record this command renders. It
// is decoded independently of pkg/obs so internal/cli does not need to
// import the sink that produced the file.
type statusRecord struct {
	Type       string `json:"type"`
	Level      string `json:"level"`
	Source     string `json:"source"`
	AgentName  string `json:"agent_name"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	StageName  string `json:"stage_name"`
	DurationMs int64  `json:"duration_ms"`
}

// runStatus prints every observability record written so far for one
// conversation, in the order they were appended to
// conversation_logs/<id>.jsonl.
func (a *App) runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	logDir := fs.String("log-dir", "./logs", "observability sink base directory")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		a.errf("Usage: gogrid status <conversation-id> [flags]\n")
		return 1
	}
	conversationID := fs.Arg(0)

	path := filepath.Join(*logDir, "conversation_logs", conversationID+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	count := 0
	for scanner.Scan() {
		var rec statusRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		count++
		line := fmt.Sprintf("%s  %-6s  %-18s  %s", rec.Timestamp, rec.Level, rec.AgentName, rec.Message)
		if rec.StageName != "" {
			line += fmt.Sprintf("  [%s, %dms]", rec.StageName, rec.DurationMs)
		}
		a.outf("%s\n", line)
	}
	if err := scanner.Err(); err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if count == 0 {
		a.outf("No records found for conversation %s.\n", conversationID)
	}
	return 0
}
