// Package process implements the higher-level stage factories: Pure,
// Effect, Model-backed, Tool-backed, and Conditional processes, plus the
// bounded reflection loop shared by Effect/Model/Tool.
// A Process is not a distinct type — it is a constructor that returns a
// stage.Stage, so processes compose with the exact same `Then` operator
// stages do.
package process

import (
	"context"
	"fmt"

	"github.com/lonestarx1/gogrid/pkg/outcome"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/stage"
)

// ModelClient is the external model collaborator a Model-backed process
// calls through: a blocking, text-in/text-out request. Its concrete
// implementation, pkg/modelclient.Client, wraps any of the teacher's
// llm.Provider SDK clients (pkg/llm/openai, /anthropic, /gemini).
type ModelClient interface {
	Call(ctx context.Context, model, prompt string) (response string, latencyMs int64, err error)
}

// ToolInvoker is the external tool collaborator a Tool-backed process calls
// through. pkg/subproc.Executor implements this for subprocess execution.
type ToolInvoker interface {
	Invoke(ctx context.Context, request string) (output string, err error)
}

// Reflection bounds the number of retries a process may consume. 0 means
// one attempt, no retries; n > 0 means one attempt plus up to n
// reflections. The rewrite applied between attempts is supplied separately
// to each constructor (Effect/Model/Tool), since its input shape depends on
// A and differs per call site.
type Reflection struct {
	Max int
}

// attempt runs body once, recovering from any panic as a Failure.
func attempt[A, B any](ctx context.Context, input A, pctx pipectx.Context, body func(context.Context, A, pipectx.Context) (B, error)) (val B, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return body(ctx, input, pctx)
}

// reflect wraps body in the bounded reflection loop. rewrite receives the
// previous attempt's input (as a string, for the default onFailure=identity
// case callers pass a no-op) and the error message, returning the input to
// retry with. The total attempt count is 1 + maxReflections.
func reflect[A, B any](maxReflections int, rewrite func(A, string) A, body func(context.Context, A, pipectx.Context) (B, error)) func(context.Context, A, pipectx.Context) outcome.Outcome[B] {
	if rewrite == nil {
		rewrite = func(a A, _ string) A { return a }
	}
	return func(ctx context.Context, input A, pctx pipectx.Context) outcome.Outcome[B] {
		current := input
		var lastErr error
		for i := 0; i <= maxReflections; i++ {
			val, err := attempt(ctx, current, pctx, body)
			if err == nil {
				stage.RecordReflections(ctx, i)
				return outcome.Ok(val, pctx)
			}
			lastErr = err
			if i < maxReflections {
				current = rewrite(current, err.Error())
			}
		}
		stage.RecordReflections(ctx, maxReflections)
		return outcome.Err[B](fmt.Sprintf("max reflections (%d) exceeded: %s", maxReflections, lastErr), pctx)
	}
}

// Pure wraps a pure function A => B that never suspends. Any panic inside
// f becomes a Failure, matching "any thrown exception becomes Failure".
func Pure[A, B any](name string, f func(A) (B, error)) stage.Stage[A, B] {
	return stage.New(name, func(ctx context.Context, input A, pctx pipectx.Context) outcome.Outcome[B] {
		val, err := attempt(ctx, input, pctx, func(_ context.Context, a A, _ pipectx.Context) (B, error) {
			return f(a)
		})
		if err != nil {
			return outcome.Err[B](err.Error(), pctx)
		}
		return outcome.Ok(val, pctx)
	})
}

// Effect wraps an effectful step (A, ctx) => B that may suspend (I/O,
// timers, cancellation). Domain exceptions become Failure; the whole body
// is retried under the bounded reflection loop.
func Effect[A, B any](name string, r Reflection, rewrite func(A, string) A, f func(context.Context, A, pipectx.Context) (B, error)) stage.Stage[A, B] {
	return stage.New(name, reflect(r.Max, rewrite, f))
}

// ModelOption configures an optional side effect of a Model-backed process,
// such as recording the call to the Observability Contract.
type ModelOption func(*modelOptions)

type modelOptions struct {
	onCall func(pctx pipectx.Context, model, prompt, response string, latencyMs int64)
}

// WithModelObserver registers a callback invoked after each successful
// model call (including retried attempts) with the prompt, response, and
// latency. pkg/obs.Sink.RecordModelCall satisfies this shape when adapted
// by the caller.
func WithModelObserver(onCall func(pctx pipectx.Context, model, prompt, response string, latencyMs int64)) ModelOption {
	return func(o *modelOptions) { o.onCall = onCall }
}

// Model builds a prompt from the input and context, issues a blocking call
// through client, and parses the textual response into B. The whole
// build->call->parse sequence is retried under the reflection loop.
func Model[A, B any](
	name string,
	r Reflection,
	rewrite func(A, string) A,
	client ModelClient,
	model string,
	buildPrompt func(A, pipectx.Context) string,
	parse func(response string) (B, error),
	opts ...ModelOption,
) stage.Stage[A, B] {
	var options modelOptions
	for _, opt := range opts {
		opt(&options)
	}
	body := func(ctx context.Context, input A, pctx pipectx.Context) (B, error) {
		prompt := buildPrompt(input, pctx)
		response, latencyMs, err := client.Call(ctx, model, prompt)
		if err != nil {
			var zero B
			return zero, fmt.Errorf("model call: %w", err)
		}
		if options.onCall != nil {
			options.onCall(pctx, model, prompt, response, latencyMs)
		}
		return parse(response)
	}
	return stage.New(name, reflect(r.Max, rewrite, body))
}

// Tool converts the input into a tool request, invokes tool, and converts
// the tool's textual outcome into B. Tool failure maps to Failure for the
// invoking process; the whole sequence is retried under the reflection
// loop.
func Tool[A, B any](
	name string,
	r Reflection,
	rewrite func(A, string) A,
	tool ToolInvoker,
	toRequest func(A, pipectx.Context) string,
	fromResult func(output string) (B, error),
) stage.Stage[A, B] {
	body := func(ctx context.Context, input A, pctx pipectx.Context) (B, error) {
		req := toRequest(input, pctx)
		out, err := tool.Invoke(ctx, req)
		if err != nil {
			var zero B
			return zero, fmt.Errorf("tool invocation: %w", err)
		}
		return fromResult(out)
	}
	return stage.New(name, reflect(r.Max, rewrite, body))
}

// When runs inner only if predicate holds for the input and context;
// otherwise the input passes through unchanged — no stage executes, no
// StageLog entry is appended, and stepIndex is not advanced.
func When[A any](name string, predicate func(A, pipectx.Context) bool, inner stage.Stage[A, A]) stage.Stage[A, A] {
	return stage.Raw(name, func(ctx context.Context, input A, pctx pipectx.Context) outcome.Outcome[A] {
		if !predicate(input, pctx) {
			return outcome.Ok(input, pctx)
		}
		return inner.Execute(ctx, input, pctx)
	})
}
