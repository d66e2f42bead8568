package cli

import (
	"bufio"
	"context"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
)

// runFollow starts a local HTTP server exposing a ws:// endpoint that
// streams one conversation's observability log as it grows, one line per
// websocket text message, for a browser-based or TUI client to render
// live rather than polling `gogrid status` in a loop.
func (a *App) runFollow(args []string) int {
	fs := flag.NewFlagSet("follow", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	logDir := fs.String("log-dir", "./logs", "observability sink base directory")
	addr := fs.String("addr", "127.0.0.1:8765", "address to listen on")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		a.errf("Usage: gogrid follow <conversation-id> [flags]\n")
		return 1
	}
	conversationID := fs.Arg(0)
	path := filepath.Join(*logDir, "conversation_logs", conversationID+".jsonl")

	mux := http.NewServeMux()
	mux.Handle("/ws", followHandler(path))

	server := &http.Server{Addr: *addr, Handler: mux}
	a.errf("gogrid: following %s on ws://%s/ws\n", conversationID, *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.errf("Error: %v\n", err)
		return 1
	}
	return 0
}

var followUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// followHandler upgrades the request to a websocket and tails path onto it
// until the client disconnects.
func followHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := followUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		tailFile(r.Context(), conn, path, 100*time.Millisecond)
	}
}

// tailFile polls path for newly appended lines every interval, writing
// each as one websocket text message, until ctx is canceled or a write to
// conn fails (client gone). A file that cannot be opened is retried on the
// next tick.
func tailFile(ctx context.Context, conn *websocket.Conn, path string, interval time.Duration) {
	var offset int64
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, ok := sendNewLines(conn, path, offset)
			if !ok {
				return
			}
			offset = next
		}
	}
}

func sendNewLines(conn *websocket.Conn, path string, offset int64) (int64, bool) {
	f, err := os.Open(path)
	if err != nil {
		// The log file for this conversation may not exist yet; keep
		// polling rather than treating a cold start as fatal.
		return offset, true
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return offset, true
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return offset, false
		}
		offset += int64(len(line)) + 1
	}
	return offset, true
}
