package cli

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// TestFollowStreamsAppendedLines checks that a client connected to the
// follow websocket receives each line appended to the tailed file after
// connecting, in order.
func TestFollowStreamsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conv-1.jsonl")
	if err := os.WriteFile(path, []byte("{\"seq\":1}\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	server := httptest.NewServer(followHandler(path))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read first message: %v", err)
	}
	if string(msg) != `{"seq":1}` {
		t.Fatalf("first message = %q, want the seeded line", msg)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopen for append: %v", err)
	}
	if _, err := f.WriteString("{\"seq\":2}\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read second message: %v", err)
	}
	if string(msg) != `{"seq":2}` {
		t.Fatalf("second message = %q, want the appended line", msg)
	}
}

// TestSendNewLinesToleratesMissingFile checks that polling a not-yet-created
// log file is treated as "nothing new yet", not a fatal error.
func TestSendNewLinesToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.jsonl")

	offset, ok := sendNewLines(nil, path, 0)
	if !ok {
		t.Fatalf("sendNewLines ok = false, want true for a missing file")
	}
	if offset != 0 {
		t.Fatalf("offset = %d, want 0", offset)
	}
}
