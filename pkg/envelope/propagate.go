package envelope

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lonestarx1/gogrid/pkg/outcome"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/stage"
)

// PropagateStage builds the standard propagation primitive: the first
// stage of a downstream agent's pipeline, which must be able to consume
// all three envelope payload variants. A Normal payload is decoded with
// decodeNormal and may produce a
// Failure if decoding fails. An UpstreamFailure or UpstreamRejection
// payload is projected into A by onFailure/onRejection and always yields
// Success — consuming an upstream fault is itself a successful step in this
// agent's own pipeline, not a fault of this agent's.
func PropagateStage[A any](
	name string,
	decodeNormal func(json.RawMessage) (A, error),
	onFailure func(UpstreamFailurePayload) A,
	onRejection func(UpstreamRejectionPayload) A,
) stage.Stage[Envelope, A] {
	return stage.New(name, func(_ context.Context, env Envelope, pctx pipectx.Context) outcome.Outcome[A] {
		switch env.PayloadType {
		case Normal:
			val, err := decodeNormal(env.Payload)
			if err != nil {
				return outcome.Err[A](fmt.Sprintf("Failed to decode input: %v", err), pctx)
			}
			return outcome.Ok(val, pctx)

		case UpstreamFailure:
			p, err := DecodeUpstreamFailure(env)
			if err != nil {
				return outcome.Err[A](fmt.Sprintf("Failed to decode upstream failure: %v", err), pctx)
			}
			return outcome.Ok(onFailure(p), pctx)

		case UpstreamRejection:
			p, err := DecodeUpstreamRejection(env)
			if err != nil {
				return outcome.Err[A](fmt.Sprintf("Failed to decode upstream rejection: %v", err), pctx)
			}
			return outcome.Ok(onRejection(p), pctx)

		default:
			return outcome.Err[A]("unrecognised payload_type: "+string(env.PayloadType), pctx)
		}
	})
}
