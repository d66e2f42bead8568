// Package outcome implements the three-valued result algebra every stage
// in an agent pipeline produces: Success, Failure, or Rejected. Outcome is
// total — every stage produces exactly one variant — and Failure/Rejected
// are never fused, because downstream agents must be able to react to a
// safety-policy block differently than to an unrecoverable error.
package outcome

import "github.com/lonestarx1/gogrid/pkg/pipectx"

// Variant discriminates which of the three outcome shapes a value holds.
type Variant int

const (
	// Success indicates the stage produced a value.
	Success Variant = iota
	// Failure indicates the stage failed unrecoverably after retries.
	Failure
	// Rejected indicates the stage was blocked by a safety policy.
	Rejected
)

// Outcome is the closed algebraic result type produced by every Stage and
// Process. Exactly one of the three variants is populated; callers must
// use Variant() to discriminate before reading Value/Err/Policy/Reason.
type Outcome[A any] struct {
	variant Variant
	value   A
	err     string
	policy  string
	reason  string
	ctx     pipectx.Context
}

// Ok constructs a Success outcome carrying value and the post-stage context.
func Ok[A any](value A, ctx pipectx.Context) Outcome[A] {
	return Outcome[A]{variant: Success, value: value, ctx: ctx}
}

// Err constructs a Failure outcome carrying a human-readable message and
// the context as of the point of failure.
func Err[A any](message string, ctx pipectx.Context) Outcome[A] {
	return Outcome[A]{variant: Failure, err: message, ctx: ctx}
}

// Reject constructs a Rejected outcome naming the guardrail policy that
// blocked the message and the reason it gave.
func Reject[A any](policyName, reason string, ctx pipectx.Context) Outcome[A] {
	return Outcome[A]{variant: Rejected, policy: policyName, reason: reason, ctx: ctx}
}

// Variant reports which of Success/Failure/Rejected this Outcome holds.
func (o Outcome[A]) Variant() Variant { return o.variant }

// IsSuccess reports whether this Outcome is a Success.
func (o Outcome[A]) IsSuccess() bool { return o.variant == Success }

// IsFailure reports whether this Outcome is a Failure.
func (o Outcome[A]) IsFailure() bool { return o.variant == Failure }

// IsRejected reports whether this Outcome is a Rejected.
func (o Outcome[A]) IsRejected() bool { return o.variant == Rejected }

// Value returns the Success payload. Only meaningful when IsSuccess.
func (o Outcome[A]) Value() A { return o.value }

// Error returns the Failure message. Only meaningful when IsFailure.
func (o Outcome[A]) Error() string { return o.err }

// Policy returns the blocking guardrail's name. Only meaningful when IsRejected.
func (o Outcome[A]) Policy() string { return o.policy }

// Reason returns the guardrail's stated reason. Only meaningful when IsRejected.
func (o Outcome[A]) Reason() string { return o.reason }

// Context returns the PipelineContext uniformly, regardless of variant.
func (o Outcome[A]) Context() pipectx.Context { return o.ctx }

// Map applies f inside a Success outcome. Failure and Rejected are
// returned unchanged — same payload, same context, no re-execution.
// Map preserves the functor laws: Map(id) = identity and
// Map(f).Map(g) = Map(g ∘ f).
func Map[A, B any](o Outcome[A], f func(A) B) Outcome[B] {
	switch o.variant {
	case Success:
		return Ok(f(o.value), o.ctx)
	case Failure:
		return Outcome[B]{variant: Failure, err: o.err, ctx: o.ctx}
	default: // Rejected
		return Outcome[B]{variant: Rejected, policy: o.policy, reason: o.reason, ctx: o.ctx}
	}
}

// FlatMap sequences f only in the Success branch of o; Failure and
// Rejected short-circuit without invoking f.
func FlatMap[A, B any](o Outcome[A], f func(A, pipectx.Context) Outcome[B]) Outcome[B] {
	switch o.variant {
	case Success:
		return f(o.value, o.ctx)
	case Failure:
		return Outcome[B]{variant: Failure, err: o.err, ctx: o.ctx}
	default: // Rejected
		return Outcome[B]{variant: Rejected, policy: o.policy, reason: o.reason, ctx: o.ctx}
	}
}

// WithContext returns a copy of o with its context replaced. Used by the
// stage composition wrapper to thread an updated (e.g. nextStep'd or
// logged) context back onto an outcome without altering its variant or
// payload.
func WithContext[A any](o Outcome[A], ctx pipectx.Context) Outcome[A] {
	o.ctx = ctx
	return o
}
