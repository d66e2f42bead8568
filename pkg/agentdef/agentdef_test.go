package agentdef

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/process"
)

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	err := json.Unmarshal(raw, &s)
	return s, err
}

func encodeString(s string, _ pipectx.Context) (json.RawMessage, error) {
	return json.Marshal(s)
}

func freshCtx() pipectx.Context {
	return pipectx.Initial("agent-under-test", "trace-1", "conv-1")
}

func TestBuiltStreamingAgentDecodesRunsAndEncodes(t *testing.T) {
	upper := process.Pure("upper", func(s string) (string, error) {
		return strings.ToUpper(s), nil
	})

	b := New[string]("shout")
	b2 := WithInput(b, "decode", decodeString,
		func(p envelope.UpstreamFailurePayload) string { return "upstream failed: " + p.Error },
		func(p envelope.UpstreamRejectionPayload) string { return "upstream rejected: " + p.Reason },
	)
	b3 := AddStage[string, string, string](b2, upper)
	b4 := WithOutput(b3, "sink-agent", encodeString)
	agent := BuildStreaming(b4)

	payload, _ := json.Marshal("hello")
	inEnv := envelope.NewNormalEnvelope("source-agent", "shout", "trace-1", "conv-1", payload)

	out := agent.Handle(context.Background(), inEnv, freshCtx())
	if !out.IsSuccess() {
		t.Fatalf("result = %v, want Success", out.Variant())
	}
	dispatch := out.Value()
	if dispatch.Terminal {
		t.Fatalf("dispatch.Terminal = true, want false for a streaming agent")
	}
	if dispatch.Output.ToAgent != "sink-agent" {
		t.Fatalf("output.ToAgent = %q, want sink-agent", dispatch.Output.ToAgent)
	}
	var got string
	if err := json.Unmarshal(dispatch.Output.Payload, &got); err != nil {
		t.Fatalf("unmarshal output payload: %v", err)
	}
	if got != "HELLO" {
		t.Fatalf("output payload = %q, want HELLO", got)
	}
}

func TestBuiltAgentPropagatesUpstreamFailureAsSuccess(t *testing.T) {
	identity := process.Pure("identity", func(s string) (string, error) { return s, nil })

	b := New[string]("shout")
	b2 := WithInput(b, "decode", decodeString,
		func(p envelope.UpstreamFailurePayload) string { return "upstream failed: " + p.Error },
		func(p envelope.UpstreamRejectionPayload) string { return "upstream rejected: " + p.Reason },
	)
	b3 := AddStage[string, string, string](b2, identity)
	b4 := WithOutput(b3, "sink-agent", encodeString)
	agent := BuildStreaming(b4)

	inEnv, err := envelope.NewUpstreamFailureEnvelope("source-agent", "shout", "trace-1", "conv-1", "disk full")
	if err != nil {
		t.Fatalf("NewUpstreamFailureEnvelope: %v", err)
	}

	out := agent.Handle(context.Background(), inEnv, freshCtx())
	if !out.IsSuccess() {
		t.Fatalf("result = %v, want Success", out.Variant())
	}
	var got string
	_ = json.Unmarshal(out.Value().Output.Payload, &got)
	if got != "upstream failed: disk full" {
		t.Fatalf("output payload = %q, want projection of upstream failure", got)
	}
}

func TestBuiltAgentWithGuardRejects(t *testing.T) {
	identity := process.Pure("identity", func(s string) (string, error) { return s, nil })

	b := New[string]("gatekeeper")
	b2 := WithInput(b, "decode", decodeString,
		func(p envelope.UpstreamFailurePayload) string { return p.Error },
		func(p envelope.UpstreamRejectionPayload) string { return p.Reason },
	)
	b3 := AddStage[string, string, string](b2, identity)
	b4 := WithGuard(b3, "banned-words", func(s string, _ pipectx.Context) (bool, string, string) {
		if strings.Contains(s, "banned") {
			return false, "banned-words", "contains a banned term"
		}
		return true, "", ""
	})
	b5 := WithOutput(b4, "sink-agent", encodeString)
	agent := BuildStreaming(b5)

	payload, _ := json.Marshal("this has a banned term")
	inEnv := envelope.NewNormalEnvelope("source-agent", "gatekeeper", "trace-1", "conv-1", payload)

	out := agent.Handle(context.Background(), inEnv, freshCtx())
	if !out.IsRejected() {
		t.Fatalf("result = %v, want Rejected", out.Variant())
	}
	if out.Policy() != "banned-words" {
		t.Fatalf("policy = %q, want banned-words", out.Policy())
	}
}

func TestBuiltTerminalAgentSinksInsteadOfPublishing(t *testing.T) {
	var sunk string
	identity := process.Pure("identity", func(s string) (string, error) { return s, nil })

	b := New[string]("report")
	b2 := WithInput(b, "decode", decodeString,
		func(p envelope.UpstreamFailurePayload) string { return p.Error },
		func(p envelope.UpstreamRejectionPayload) string { return p.Reason },
	)
	b3 := AddStage[string, string, string](b2, identity)
	b4 := WithTerminal(b3, func(_ context.Context, s string, _ pipectx.Context) error {
		sunk = s
		return nil
	})
	agent := BuildTerminal(b4)

	payload, _ := json.Marshal("final result")
	inEnv := envelope.NewNormalEnvelope("source-agent", "report", "trace-1", "conv-1", payload)

	out := agent.Handle(context.Background(), inEnv, freshCtx())
	if !out.IsSuccess() {
		t.Fatalf("result = %v, want Success", out.Variant())
	}
	if !out.Value().Terminal {
		t.Fatalf("dispatch.Terminal = false, want true")
	}
	if sunk != "final result" {
		t.Fatalf("sunk = %q, want final result", sunk)
	}
}
