// Package agentdef implements the Agent Builder: a builder whose type
// parameters track, at each step, whether an input binding has been
// supplied, whether at least one pipeline stage has been composed, and
// which of output-stream or terminal-marker binding (if either) has been
// chosen. An incomplete builder simply does not have a Build method whose
// signature matches — the functional-options constructor (agent.Option)
// elsewhere in this module enforces validity at
// construction time by runtime checks; this builder enforces the same
// shape at compile time by giving "bound" and "unbound" their own marker
// types and threading them through the builder's type parameter list.
package agentdef

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/outcome"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/stage"
)

// Marker types occupying the builder's state type parameters. They carry
// no data; their only purpose is to make two builder states distinct
// types, so a method requiring "unbound" does not typecheck against a
// builder that is already "bound".
type (
	unbound struct{}
	bound   struct{}
	outUnset struct{}
	outStream struct{}
	outTerminal struct{}
)

// Builder accumulates an agent definition. A is the domain type produced by
// the input binding's decoder; B is the type flowing out of the composed
// pipeline so far. InState tracks the input binding, StageState tracks
// whether at least one stage has been composed, OutState tracks which (if
// either) of output-stream/terminal-marker has been chosen.
type Builder[A, B any, InState, StageState, OutState any] struct {
	name string

	inputStage stage.Stage[envelope.Envelope, A]
	pipeline   stage.Stage[A, B]
	guard      *stage.Stage[B, B]

	toAgent      string
	encodeOutput func(B, pipectx.Context) (json.RawMessage, error)
	sinkTerminal func(context.Context, B, pipectx.Context) error
}

// New starts a builder for an agent named name. The zero-value pipeline is
// the identity stage on A; WithInput and AddStage must both be called
// before Build{Streaming,Terminal} becomes available.
func New[A any](name string) *Builder[A, A, unbound, unbound, outUnset] {
	return &Builder[A, A, unbound, unbound, outUnset]{
		name:     name,
		pipeline: stage.Identity[A](),
	}
}

// WithInput binds the agent's single input: a decoder for Normal payloads,
// plus projections consuming an UpstreamFailure or UpstreamRejection
// payload from an upstream agent. Only callable once — the receiver's
// InState must be unbound, and the result's InState is bound, so a second
// call does not typecheck.
func WithInput[A, B any, StageState, OutState any](
	b *Builder[A, B, unbound, StageState, OutState],
	stageName string,
	decodeNormal func(json.RawMessage) (A, error),
	onUpstreamFailure func(envelope.UpstreamFailurePayload) A,
	onUpstreamRejection func(envelope.UpstreamRejectionPayload) A,
) *Builder[A, B, bound, StageState, OutState] {
	return &Builder[A, B, bound, StageState, OutState]{
		name:         b.name,
		inputStage:   envelope.PropagateStage(stageName, decodeNormal, onUpstreamFailure, onUpstreamRejection),
		pipeline:     b.pipeline,
		guard:        b.guard,
		toAgent:      b.toAgent,
		encodeOutput: b.encodeOutput,
		sinkTerminal: b.sinkTerminal,
	}
}

// AddStage composes s after the stages accumulated so far. Callable any
// number of times; the first call transitions StageState from unbound to
// bound, satisfying the "at least one stage" requirement, and every
// subsequent call keeps it bound.
func AddStage[A, B, C any, InState, StageState, OutState any](
	b *Builder[A, B, InState, StageState, OutState],
	s stage.Stage[B, C],
) *Builder[A, C, InState, bound, OutState] {
	return &Builder[A, C, InState, bound, OutState]{
		name:       b.name,
		inputStage: b.inputStage,
		pipeline:   stage.Then(b.pipeline, s),
		toAgent:    b.toAgent,
	}
}

// WithGuard appends an optional guardrail check after the pipeline's last
// stage. check returns (pass, policyName, reason); when pass is false the
// pipeline's outcome becomes Rejected(policyName, reason) instead of
// continuing to the output/terminal binding.
func WithGuard[A, B any, InState, StageState, OutState any](
	b *Builder[A, B, InState, StageState, OutState],
	name string,
	check func(B, pipectx.Context) (pass bool, policyName string, reason string),
) *Builder[A, B, InState, StageState, OutState] {
	g := stage.New(name, func(_ context.Context, val B, pctx pipectx.Context) outcome.Outcome[B] {
		ok, policyName, reason := check(val, pctx)
		if !ok {
			return outcome.Reject[B](policyName, reason, pctx)
		}
		return outcome.Ok(val, pctx)
	})
	return &Builder[A, B, InState, StageState, OutState]{
		name:         b.name,
		inputStage:   b.inputStage,
		pipeline:     b.pipeline,
		guard:        &g,
		toAgent:      b.toAgent,
		encodeOutput: b.encodeOutput,
		sinkTerminal: b.sinkTerminal,
	}
}

// WithOutput binds the agent's single downstream output: every successful
// pipeline result is encoded and published as a Normal envelope addressed
// to toAgent. Mutually exclusive with WithTerminal — both require OutState
// unset on entry, and each produces a distinct OutState, so a builder that
// has chosen one cannot also choose the other.
func WithOutput[A, B any, InState, StageState any](
	b *Builder[A, B, InState, StageState, outUnset],
	toAgent string,
	encode func(B, pipectx.Context) (json.RawMessage, error),
) *Builder[A, B, InState, StageState, outStream] {
	return &Builder[A, B, InState, StageState, outStream]{
		name:         b.name,
		inputStage:   b.inputStage,
		pipeline:     b.pipeline,
		guard:        b.guard,
		toAgent:      toAgent,
		encodeOutput: encode,
	}
}

// WithTerminal marks this agent as a terminal sink: every successful
// pipeline result is handed to sink instead of being published downstream.
func WithTerminal[A, B any, InState, StageState any](
	b *Builder[A, B, InState, StageState, outUnset],
	sink func(context.Context, B, pipectx.Context) error,
) *Builder[A, B, InState, StageState, outTerminal] {
	return &Builder[A, B, InState, StageState, outTerminal]{
		name:         b.name,
		inputStage:   b.inputStage,
		pipeline:     b.pipeline,
		guard:        b.guard,
		sinkTerminal: sink,
	}
}

// Dispatch is what handling one inbound envelope produces: either an
// outbound envelope to publish (Terminal == false) or confirmation that the
// value reached its terminal sink (Terminal == true).
type Dispatch struct {
	Terminal bool
	Output   envelope.Envelope
}

// Agent is a fully built, runnable agent definition. pkg/runtime drives it
// per inbound message.
type Agent struct {
	Name string
	// ToAgent names the downstream agent a non-terminal agent's output is
	// addressed to. Empty for a terminal agent.
	ToAgent string
	// IsTerminal reports whether this agent has no downstream stream — the
	// runtime writes a failure/rejection line to the observability sink
	// instead of a downstream envelope in that case.
	IsTerminal bool

	handle func(ctx context.Context, env envelope.Envelope, pctx pipectx.Context) outcome.Outcome[Dispatch]
}

// Handle runs the agent's full pipeline (propagation-aware decode, stages,
// optional guard, then output encoding or terminal sink) on one inbound
// envelope.
func (a *Agent) Handle(ctx context.Context, env envelope.Envelope, pctx pipectx.Context) outcome.Outcome[Dispatch] {
	return a.handle(ctx, env, pctx)
}

func fullPipeline[A, B any, InState, StageState, OutState any](b *Builder[A, B, InState, StageState, OutState]) stage.Stage[envelope.Envelope, B] {
	full := stage.Then(b.inputStage, b.pipeline)
	if b.guard != nil {
		full = stage.Then(full, *b.guard)
	}
	return full
}

// BuildStreaming finalizes a builder that chose WithOutput. Only callable
// once InState and StageState are both bound and OutState is outStream —
// any earlier state does not have a method with this signature.
func BuildStreaming[A, B any](b *Builder[A, B, bound, bound, outStream]) *Agent {
	full := fullPipeline(b)
	toAgent := b.toAgent
	encode := b.encodeOutput
	name := b.name
	return &Agent{
		Name:    name,
		ToAgent: toAgent,
		handle: func(ctx context.Context, env envelope.Envelope, pctx pipectx.Context) outcome.Outcome[Dispatch] {
			out := full.Execute(ctx, env, pctx)
			return outcome.FlatMap(out, func(val B, stepCtx pipectx.Context) outcome.Outcome[Dispatch] {
				payload, err := encode(val, stepCtx)
				if err != nil {
					return outcome.Err[Dispatch](fmt.Sprintf("failed to encode output: %v", err), stepCtx)
				}
				outEnv := envelope.NewNormalEnvelope(name, toAgent, stepCtx.TraceID, stepCtx.ConversationID, payload)
				return outcome.Ok(Dispatch{Output: outEnv}, stepCtx)
			})
		},
	}
}

// BuildTerminal finalizes a builder that chose WithTerminal.
func BuildTerminal[A, B any](b *Builder[A, B, bound, bound, outTerminal]) *Agent {
	full := fullPipeline(b)
	sink := b.sinkTerminal
	name := b.name
	return &Agent{
		Name:       name,
		IsTerminal: true,
		handle: func(ctx context.Context, env envelope.Envelope, pctx pipectx.Context) outcome.Outcome[Dispatch] {
			out := full.Execute(ctx, env, pctx)
			return outcome.FlatMap(out, func(val B, stepCtx pipectx.Context) outcome.Outcome[Dispatch] {
				if err := sink(ctx, val, stepCtx); err != nil {
					return outcome.Err[Dispatch](fmt.Sprintf("terminal sink failed: %v", err), stepCtx)
				}
				return outcome.Ok(Dispatch{Terminal: true}, stepCtx)
			})
		},
	}
}
