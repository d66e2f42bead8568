// Package pipectx defines the immutable per-message metadata threaded
// through every stage of an agent pipeline.
package pipectx

import "time"

// TerminalState names the outcome variant a stage finished in, recorded
// in a StageLog entry.
type TerminalState int

const (
	// StateSuccess marks a stage that produced a Success outcome.
	StateSuccess TerminalState = iota
	// StateFailure marks a stage that produced a Failure outcome.
	StateFailure
	// StateRejected marks a stage that produced a Rejected outcome.
	StateRejected
)

// String returns the human-readable name of the terminal state.
func (s TerminalState) String() string {
	switch s {
	case StateSuccess:
		return "Success"
	case StateFailure:
		return "Failure"
	case StateRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// StageLog records the execution of a single stage: its name, position,
// wall-clock duration, reflection attempts consumed, and terminal state.
type StageLog struct {
	// StageName identifies the stage that produced this entry.
	StageName string
	// StageIndex is the stepIndex observed when this stage ran.
	StageIndex int
	// DurationMs is the wall-clock duration of the stage in milliseconds.
	DurationMs int64
	// ReflectionsUsed is the number of reflection retries consumed.
	ReflectionsUsed int
	// Terminal is the outcome variant the stage finished in.
	Terminal TerminalState
	// Message carries the error or rejection reason, empty on Success.
	Message string
}

// Context is the immutable, per-message metadata carried alongside every
// stage's input and output. A Context exists for exactly one message; it
// is never shared across messages and never mutated in place — every
// mutating operation returns a new Context value.
type Context struct {
	// AgentName is the stable identity of the owning agent.
	AgentName string
	// TraceID is the distributed-trace correlator, inherited from the
	// inbound envelope.
	TraceID string
	// ConversationID is the logical conversation correlator, inherited
	// from the inbound envelope.
	ConversationID string
	// StepIndex is monotonically increasing across composed stages.
	StepIndex int
	// StepLogs is the append-only sequence of StageLog entries recorded
	// so far.
	StepLogs []StageLog

	// startedAt anchors duration measurement for the currently-running stage.
	startedAt time.Time
}

// Initial creates a fresh Context for a newly ingested message, with
// stepIndex = 0 and an empty stepLogs sequence.
func Initial(agentName, traceID, conversationID string) Context {
	return Context{
		AgentName:      agentName,
		TraceID:        traceID,
		ConversationID: conversationID,
		StepIndex:      0,
		StepLogs:       nil,
	}
}

// NextStep returns a copy of the Context with stepIndex incremented by
// one, using strict increment: every call to NextStep advances the index
// by exactly one, regardless of composition associativity, because
// pkg/stage folds stages left-to-right over a slice rather than nesting
// closures.
func (c Context) NextStep() Context {
	next := c
	next.StepIndex = c.StepIndex + 1
	next.StepLogs = c.StepLogs // shared backing array; WithLog copies before append
	return next
}

// WithLog returns a copy of the Context with entry appended to stepLogs.
// stepLogs is never mutated in place: the entries are copied into a fresh
// backing array before entry is appended, so no two Contexts share the
// array and every Context that observed the shorter slice is unaffected.
func (c Context) WithLog(entry StageLog) Context {
	next := c
	logs := make([]StageLog, len(c.StepLogs), len(c.StepLogs)+1)
	copy(logs, c.StepLogs)
	next.StepLogs = append(logs, entry)
	return next
}

// MarkStart returns a copy of the Context with an internal start-time
// marker set, used by the stage logging wrapper to measure duration.
func (c Context) MarkStart(now time.Time) Context {
	next := c
	next.startedAt = now
	return next
}

// StartedAt returns the marker set by MarkStart, or the zero time if
// none was set.
func (c Context) StartedAt() time.Time {
	return c.startedAt
}
