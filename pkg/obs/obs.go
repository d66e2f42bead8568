// Package obs implements the observability sink: two append-only JSONL
// streams per conversation — a per-agent stream and a per-conversation
// stream — written with bounded retry and never allowed to fail the
// pipeline they observe. Built on pkg/trace/log.FileWriter (size-based
// rotation, one writer per path) and pkg/trace.Tracer/Span conventions,
// generalized from a single log stream to the two named sinks here.
package obs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lonestarx1/gogrid/pkg/pipectx"
	applog "github.com/lonestarx1/gogrid/pkg/trace/log"
)

// Level is the record's severity.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Source identifies which subsystem produced a record.
type Source string

const (
	SourceAgent  Source = "Agent"
	SourceSubmit Source = "Submit"
	SourceLLM    Source = "LLM"
	SourceCLI    Source = "CLI"
)

// Record is one JSONL line written to either sink. Every record carries at
// least Type/ConversationID/Level/Source/Message/Timestamp; model-call
// records additionally carry Prompt/Response/Model/DurationMs.
type Record struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Level          Level  `json:"level"`
	Source         Source `json:"source"`
	AgentName      string `json:"agent_name,omitempty"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
	TraceID        string `json:"trace_id,omitempty"`
	StepIndex      int    `json:"step_index,omitempty"`
	StageName      string `json:"stage_name,omitempty"`
	DurationMs     int64  `json:"duration_ms,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	Response       string `json:"response,omitempty"`
	Model          string `json:"model,omitempty"`
	Stages         []StageTiming `json:"stages,omitempty"`
}

// StageTiming is one entry in a message-summary record's stage sequence.
type StageTiming struct {
	StageName       string `json:"stage_name"`
	DurationMs      int64  `json:"duration_ms"`
	ReflectionsUsed int    `json:"reflections_used,omitempty"`
}

// Sink fans writes out to the agent_logs/ and conversation_logs/ JSONL
// files under baseDir.
type Sink struct {
	baseDir string
	retries int
	backoff time.Duration
	onDrop  func(path string, err error)

	mu      sync.Mutex
	writers map[string]*applog.FileWriter
}

// Option configures a Sink.
type Option func(*Sink)

// WithRetry bounds the number of write attempts per record and the delay
// between them. 0 retries means a single attempt, no retry.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(s *Sink) {
		s.retries = retries
		s.backoff = backoff
	}
}

// WithDropHandler installs a callback invoked when a record could not be
// written after exhausting retries. It is called synchronously from the
// failing write; the pipeline's own Outcome is never affected by sink
// failures.
func WithDropHandler(f func(path string, err error)) Option {
	return func(s *Sink) { s.onDrop = f }
}

// New creates a Sink rooted at baseDir. agent_logs/ and conversation_logs/
// subdirectories are created lazily on first write.
func New(baseDir string, opts ...Option) *Sink {
	s := &Sink{
		baseDir: baseDir,
		backoff: 50 * time.Millisecond,
		writers: make(map[string]*applog.FileWriter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) agentLogPath(conversationID, agentName string) string {
	return filepath.Join(s.baseDir, "agent_logs", fmt.Sprintf("%s_%s.jsonl", conversationID, agentName))
}

func (s *Sink) conversationLogPath(conversationID string) string {
	return filepath.Join(s.baseDir, "conversation_logs", conversationID+".jsonl")
}

// StageStarted satisfies stage.Logger. The Observability Contract records
// stage completions, not starts, so this is a no-op.
func (s *Sink) StageStarted(pipectx.Context, string) {}

// StageCompleted satisfies stage.Logger: it writes one Record to both
// sinks describing the just-completed stage. Non-Success terminals are
// recorded at ERROR level.
func (s *Sink) StageCompleted(ctx pipectx.Context, entry pipectx.StageLog) {
	level := LevelInfo
	if entry.Terminal != pipectx.StateSuccess {
		level = LevelError
	}
	message := entry.Message
	if message == "" {
		message = fmt.Sprintf("stage %q completed", entry.StageName)
	}
	s.record(ctx, Record{
		Type:       "stage_completed",
		Level:      level,
		Source:     SourceAgent,
		Message:    message,
		StepIndex:  entry.StageIndex,
		StageName:  entry.StageName,
		DurationMs: entry.DurationMs,
	})
}

// RecordModelCall appends an auxiliary record describing one model
// invocation, carrying the full prompt and response text.
func (s *Sink) RecordModelCall(ctx pipectx.Context, model, prompt, response string, durationMs int64) {
	s.record(ctx, Record{
		Type:       "model_call",
		Level:      LevelInfo,
		Source:     SourceLLM,
		Message:    fmt.Sprintf("model call to %q completed", model),
		DurationMs: durationMs,
		Prompt:     prompt,
		Response:   response,
		Model:      model,
	})
}

// RecordMessageSummary appends one summary record per processed message:
// outcome variant plus the ordered (stageName, durationMs, reflectionsUsed)
// sequence observed so far.
func (s *Sink) RecordMessageSummary(ctx pipectx.Context, terminal pipectx.TerminalState, message string) {
	level := LevelInfo
	if terminal != pipectx.StateSuccess {
		level = LevelError
	}
	stages := make([]StageTiming, len(ctx.StepLogs))
	for i, entry := range ctx.StepLogs {
		stages[i] = StageTiming{
			StageName:       entry.StageName,
			DurationMs:      entry.DurationMs,
			ReflectionsUsed: entry.ReflectionsUsed,
		}
	}
	s.record(ctx, Record{
		Type:    "message_summary",
		Level:   level,
		Source:  SourceAgent,
		Message: message,
		Stages:  stages,
	})
}

func (s *Sink) record(ctx pipectx.Context, rec Record) {
	rec.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	rec.ConversationID = ctx.ConversationID
	rec.AgentName = ctx.AgentName
	rec.TraceID = ctx.TraceID

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.writeTo(s.agentLogPath(ctx.ConversationID, ctx.AgentName), data)
	s.writeTo(s.conversationLogPath(ctx.ConversationID), data)
}

func (s *Sink) writeTo(path string, data []byte) {
	w, err := s.writerFor(path)
	if err != nil {
		if s.onDrop != nil {
			s.onDrop(path, err)
		}
		return
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if _, lastErr = w.Write(data); lastErr == nil {
			return
		}
		if attempt < s.retries {
			time.Sleep(s.backoff)
		}
	}
	if s.onDrop != nil {
		s.onDrop(path, lastErr)
	}
}

func (s *Sink) writerFor(path string) (*applog.FileWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.writers[path]; ok {
		return w, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("obs: create directory for %s: %w", path, err)
	}
	w, err := applog.NewFileWriter(path, applog.FileConfig{})
	if err != nil {
		return nil, fmt.Errorf("obs: open %s: %w", path, err)
	}
	s.writers[path] = w
	return w, nil
}

// Close closes every file writer the sink has opened.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, w := range s.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
