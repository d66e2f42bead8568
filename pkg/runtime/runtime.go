// Package runtime implements the Agent Runtime: the long-running broker
// consumer loop that owns one agent's lifecycle — startup, per-message
// concurrent dispatch bounded by broker prefetch, outcome-to-envelope
// mapping, publish/ack, and graceful shutdown. Built on a span-per-unit,
// progress-callback, context-deadline-checking loop, generalized from a
// sequential in-process loop to a broker-driven one where each delivered
// message spawns its own task.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lonestarx1/gogrid/pkg/agentdef"
	"github.com/lonestarx1/gogrid/pkg/broker"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/obs"
	"github.com/lonestarx1/gogrid/pkg/outcome"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/stage"
)

// streamSuffix and streamPrefix implement the stream naming convention:
// agent_<agentName>_tasks is the sole source of truth converting between
// an agent's name and its input stream identifier.
const (
	streamPrefix = "agent_"
	streamSuffix = "_tasks"
)

// StreamName derives the durable stream identifier an agent named
// agentName consumes from (or, for a downstream agent, publishes to).
func StreamName(agentName string) string {
	return streamPrefix + agentName + streamSuffix
}

// AgentNameFromStream recovers the agent name a stream identifier was
// derived from. ok is false if streamName does not follow the convention.
func AgentNameFromStream(streamName string) (name string, ok bool) {
	if len(streamName) <= len(streamPrefix)+len(streamSuffix) {
		return "", false
	}
	if streamName[:len(streamPrefix)] != streamPrefix {
		return "", false
	}
	if streamName[len(streamName)-len(streamSuffix):] != streamSuffix {
		return "", false
	}
	return streamName[len(streamPrefix) : len(streamName)-len(streamSuffix)], true
}

// Printer receives one-line human-readable summaries. *log.Logger and
// any compatible type satisfy it.
type Printer interface {
	Printf(format string, args ...any)
}

// Config configures one agent's runtime loop.
type Config struct {
	// Agent is the built, runnable agent definition this loop drives.
	Agent *agentdef.Agent
	// Broker is the connected broker client shared read-only across
	// tasks (publish calls must be safe for concurrent use).
	Broker broker.Broker
	// Prefetch bounds the number of concurrently in-flight deliveries.
	// Defaults to 10 when <= 0.
	Prefetch int
	// Obs is the Observability Contract sink; also installed as the
	// pipeline's stage.Logger.
	Obs *obs.Sink
	// Log receives one-line summaries. Defaults to a no-op.
	Log Printer
}

// Runtime drives one agent's consume loop.
type Runtime struct {
	cfg Config
}

// New constructs a Runtime from cfg, applying defaults.
func New(cfg Config) *Runtime {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	if cfg.Log == nil {
		cfg.Log = noopPrinter{}
	}
	return &Runtime{cfg: cfg}
}

type noopPrinter struct{}

func (noopPrinter) Printf(string, ...any) {}

// Run opens the agent's input stream (and output stream, if non-terminal)
// and drives the consume loop until ctx is cancelled. On return, all
// in-flight tasks have finished (best-effort graceful shutdown per spec
// §4.7's Shutdown contract).
func (r *Runtime) Run(ctx context.Context) error {
	agentName := r.cfg.Agent.Name
	inputStream := StreamName(agentName)

	if err := r.cfg.Broker.EnsureStream(ctx, inputStream); err != nil {
		return fmt.Errorf("runtime: ensure input stream %q: %w", inputStream, err)
	}
	if !r.cfg.Agent.IsTerminal {
		outputStream := StreamName(r.cfg.Agent.ToAgent)
		if err := r.cfg.Broker.EnsureStream(ctx, outputStream); err != nil {
			return fmt.Errorf("runtime: ensure output stream %q: %w", outputStream, err)
		}
	}

	deliveries, err := r.cfg.Broker.Consume(ctx, inputStream, r.cfg.Prefetch)
	if err != nil {
		return fmt.Errorf("runtime: consume %q: %w", inputStream, err)
	}

	var wg sync.WaitGroup
	for delivery := range deliveries {
		wg.Add(1)
		go func(d broker.Delivery) {
			defer wg.Done()
			r.handle(ctx, d)
		}(delivery)
	}

	wg.Wait()
	return r.cfg.Broker.Close()
}

// handle runs the full decode-run-publish-ack contract of the consume
// loop for one delivered message.
func (r *Runtime) handle(ctx context.Context, d broker.Delivery) {
	agentName := r.cfg.Agent.Name

	env, err := envelope.Decode(d.Data)
	if err != nil {
		r.cfg.Log.Printf("agent %s: decode failed: %v", agentName, err)
		// A malformed message can never be decoded on redelivery either;
		// Terminate drops it without requeue instead of spinning forever.
		_ = d.Terminate()
		return
	}

	pctx := pipectx.Initial(agentName, env.TraceID, env.ConversationID)
	runCtx := ctx
	if r.cfg.Obs != nil {
		runCtx = stage.WithLogger(ctx, r.cfg.Obs)
	}

	start := time.Now()
	out := r.cfg.Agent.Handle(runCtx, env, pctx)
	elapsed := time.Since(start)

	finalCtx := out.Context()
	terminalState := variantToState(out.Variant())
	r.cfg.Log.Printf("agent %s: message conversation=%s trace=%s outcome=%s steps=%d duration=%s",
		agentName, finalCtx.ConversationID, finalCtx.TraceID, terminalState, finalCtx.StepIndex, elapsed)

	summary := summaryMessage(out)
	if r.cfg.Obs != nil {
		r.cfg.Obs.RecordMessageSummary(finalCtx, terminalState, summary)
	}

	if r.cfg.Agent.IsTerminal {
		// On Success the configured terminal sink already ran inside
		// agentdef; on Failure/Rejected there is no downstream to notify,
		// so the message summary record above is this runtime's
		// "descriptive failure/rejection line" to the observability sink.
		_ = d.Ack()
		return
	}

	outEnv, err := outboundEnvelope(out, agentName, r.cfg.Agent.ToAgent, finalCtx)
	if err != nil {
		r.cfg.Log.Printf("agent %s: failed to build outbound envelope: %v", agentName, err)
		// Same malformed-forever reasoning as the decode-failure path above:
		// no redelivery count fixes a value that can't be turned into an
		// outbound envelope.
		_ = d.Terminate()
		return
	}

	data, err := envelope.Encode(outEnv)
	if err != nil {
		r.cfg.Log.Printf("agent %s: failed to encode outbound envelope: %v", agentName, err)
		_ = d.Terminate()
		return
	}

	if err := r.cfg.Broker.Publish(ctx, StreamName(r.cfg.Agent.ToAgent), data); err != nil {
		r.cfg.Log.Printf("agent %s: publish failed: %v", agentName, err)
		// A downstream publish failure is the runtime's own responsibility,
		// not the inbound message's fault, but this broker has no separate
		// retry-then-terminate policy layered above Terminate; bounded retry
		// (if any) belongs to the Broker.Publish implementation itself.
		_ = d.Terminate()
		return
	}

	_ = d.Ack()
}

func variantToState(v outcome.Variant) pipectx.TerminalState {
	switch v {
	case outcome.Success:
		return pipectx.StateSuccess
	case outcome.Failure:
		return pipectx.StateFailure
	default:
		return pipectx.StateRejected
	}
}

func summaryMessage(out outcome.Outcome[agentdef.Dispatch]) string {
	switch out.Variant() {
	case outcome.Success:
		return "message processed successfully"
	case outcome.Failure:
		return "message failed: " + out.Error()
	default:
		return "message rejected by policy " + out.Policy() + ": " + out.Reason()
	}
}

// outboundEnvelope derives the output envelope's shape entirely from the
// pipeline outcome's variant. A Failure/Rejected originating in domain
// logic and one originating in a local encode/sink step inside agentdef
// are indistinguishable to a downstream agent, and are treated
// identically here.
func outboundEnvelope(out outcome.Outcome[agentdef.Dispatch], fromAgent, toAgent string, ctx pipectx.Context) (envelope.Envelope, error) {
	switch out.Variant() {
	case outcome.Success:
		return out.Value().Output, nil
	case outcome.Failure:
		return envelope.NewUpstreamFailureEnvelope(fromAgent, toAgent, ctx.TraceID, ctx.ConversationID, out.Error())
	default:
		return envelope.NewUpstreamRejectionEnvelope(fromAgent, toAgent, ctx.TraceID, ctx.ConversationID, out.Policy(), out.Reason())
	}
}
