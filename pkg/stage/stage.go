// Package stage implements the Kleisli-style composable unit
// `(A, PipelineContext) => Outcome<B>` that underlies every agent pipeline,
// its associative composition operator, and the per-stage logging wrapper.
package stage

import (
	"context"
	"time"

	"github.com/lonestarx1/gogrid/pkg/outcome"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
)

// Logger receives one call per stage start and one per stage completion.
// Implementations must not block the pipeline on slow I/O; pkg/obs provides
// a bounded-retry, non-propagating implementation.
type Logger interface {
	// StageStarted is called immediately before a leaf stage's body runs.
	StageStarted(ctx pipectx.Context, stageName string)
	// StageCompleted is called immediately after a leaf stage's body runs,
	// with the StageLog entry that was appended to the returned context.
	StageCompleted(ctx pipectx.Context, entry pipectx.StageLog)
}

type loggerKey struct{}

type reflectionsKey struct{}

// RecordReflections reports the number of reflection retries a process
// consumed for the stage currently executing under ctx. Processes that
// loop internally (pkg/process's Effect/Model/Tool) call this just before
// returning so the enclosing Execute can carry the count into the
// resulting StageLog entry. A no-op if ctx carries no counter, which is
// the case for any stage run outside of Execute (e.g. directly in tests).
func RecordReflections(ctx context.Context, n int) {
	if counter, ok := ctx.Value(reflectionsKey{}).(*int); ok {
		*counter = n
	}
}

// WithLogger returns a context carrying logger, retrievable by every stage
// executed within it. Mirrors the trace.SpanFromContext pattern: the
// Logger rides the context rather than being threaded through every call
// signature.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// loggerFromContext returns the Logger installed by WithLogger, or a no-op.
func loggerFromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok && l != nil {
		return l
	}
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) StageStarted(pipectx.Context, string)          {}
func (noopLogger) StageCompleted(pipectx.Context, pipectx.StageLog) {}

// runFunc is the business-logic shape every leaf stage wraps: it never
// raises exceptions externally — all domain faults are encoded in the
// returned Outcome.
type runFunc[A, B any] func(ctx context.Context, input A, pctx pipectx.Context) outcome.Outcome[B]

// Stage is a named, composable unit `(A, ctx) -> Outcome<B>`.
type Stage[A, B any] struct {
	// Name identifies this stage in logs and traces.
	Name string

	run       runFunc[A, B]
	composite bool
}

// New wraps a business-logic function as a leaf Stage. Every call to
// Execute on a leaf stage advances the context's stepIndex by one before
// running the body, and appends exactly one StageLog entry on return.
func New[A, B any](name string, fn func(ctx context.Context, input A, pctx pipectx.Context) outcome.Outcome[B]) Stage[A, B] {
	return Stage[A, B]{Name: name, run: fn}
}

// Map lifts a pure function A -> B into a Stage that always succeeds.
func Map[A, B any](name string, f func(A) B) Stage[A, B] {
	return New(name, func(_ context.Context, input A, pctx pipectx.Context) outcome.Outcome[B] {
		return outcome.Ok(f(input), pctx)
	})
}

// Raw constructs a Stage whose run function is invoked directly by
// Execute with no additional logging wrapper or stepIndex advance. Used by
// higher layers (e.g. pkg/process's conditional When) that delegate to
// other stages' own Execute calls and would otherwise double-log a leaf.
func Raw[A, B any](name string, fn func(ctx context.Context, input A, pctx pipectx.Context) outcome.Outcome[B]) Stage[A, B] {
	return Stage[A, B]{Name: name, run: fn, composite: true}
}

// Identity returns the two-sided identity stage for composition: for any
// stage s, s.Then(Identity[B]()) and Identity[A]().Then(s) behave the same
// as s with respect to the carried value.
func Identity[A any]() Stage[A, A] {
	return New("identity", func(_ context.Context, input A, pctx pipectx.Context) outcome.Outcome[A] {
		return outcome.Ok(input, pctx)
	})
}

// Execute runs the stage. For a leaf stage this advances pctx.StepIndex by
// one, runs the body, measures wall-clock duration, and appends one
// StageLog entry carrying the terminal variant. For a composite stage
// (produced by Then) Execute simply invokes the composed run, and each leaf
// inside it applies that wrapping in its own Execute call —
// composing composites never double-logs a leaf.
func (s Stage[A, B]) Execute(ctx context.Context, input A, pctx pipectx.Context) outcome.Outcome[B] {
	if s.composite {
		return s.run(ctx, input, pctx)
	}

	logger := loggerFromContext(ctx)
	stepCtx := pctx.NextStep()
	logger.StageStarted(stepCtx, s.Name)

	var reflections int
	runCtx := context.WithValue(ctx, reflectionsKey{}, &reflections)

	start := time.Now()
	out := s.run(runCtx, input, stepCtx)
	duration := time.Since(start)

	entry := pipectx.StageLog{
		StageName:       s.Name,
		StageIndex:      stepCtx.StepIndex,
		DurationMs:      duration.Milliseconds(),
		ReflectionsUsed: reflections,
		Terminal:        terminalOf(out),
		Message:         messageOf(out),
	}
	finalCtx := out.Context().WithLog(entry)
	out = outcome.WithContext(out, finalCtx)

	logger.StageCompleted(finalCtx, entry)
	return out
}

// Then composes s1 ▷ s2 into a single composite Stage. s2 runs only when
// s1 produces Success, on s1's value and s1's post-stage context; a
// Failure or Rejected from s1 short-circuits — s2 is never invoked — and
// is returned with its context unchanged by this composition step.
func Then[A, B, C any](s1 Stage[A, B], s2 Stage[B, C]) Stage[A, C] {
	return Stage[A, C]{
		Name:      s1.Name + " ▷ " + s2.Name,
		composite: true,
		run: func(ctx context.Context, a A, pctx pipectx.Context) outcome.Outcome[C] {
			o1 := s1.Execute(ctx, a, pctx)
			return outcome.FlatMap(o1, func(b B, stepCtx pipectx.Context) outcome.Outcome[C] {
				return s2.Execute(ctx, b, stepCtx)
			})
		},
	}
}

func terminalOf[A any](o outcome.Outcome[A]) pipectx.TerminalState {
	switch o.Variant() {
	case outcome.Success:
		return pipectx.StateSuccess
	case outcome.Failure:
		return pipectx.StateFailure
	default:
		return pipectx.StateRejected
	}
}

func messageOf[A any](o outcome.Outcome[A]) string {
	switch o.Variant() {
	case outcome.Failure:
		return o.Error()
	case outcome.Rejected:
		return o.Policy() + ": " + o.Reason()
	default:
		return ""
	}
}
