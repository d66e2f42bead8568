// Package report implements the fourth concrete agent: a terminal sink
// that formats the final execution result — or a propagated upstream
// failure/rejection — into a user-visible text block.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lonestarx1/gogrid/agents/execute"
	"github.com/lonestarx1/gogrid/pkg/agentdef"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/process"
)

// Name is this agent's stable identity.
const Name = "report"

// Result mirrors agents/execute.Result — the wire shape this agent
// decodes from the execute agent's output stream.
type Result = execute.Result

// note marks a Result that was synthesized from an upstream
// failure/rejection rather than a real subprocess run, so the formatted
// block below can label it correctly even though propagation already
// folded it into a Success payload.
type note struct {
	Kind   string `json:"kind"` // "failure" or "rejected", empty for a real result
	Detail string `json:"detail"`
}

// Report is the formatted block written to the terminal sink.
type Report struct {
	Result Result `json:"result"`
	Note   note   `json:"note"`
}

func format(r Report) string {
	var b strings.Builder
	switch r.Note.Kind {
	case "failure":
		fmt.Fprintf(&b, "=== FAILED ===\n%s\n", r.Note.Detail)
	case "rejected":
		fmt.Fprintf(&b, "=== REJECTED ===\n%s\n", r.Note.Detail)
	default:
		fmt.Fprintf(&b, "=== SUCCESS ===\nexit code: %d\n", r.Result.ExitCode)
		if r.Result.Stdout != "" {
			fmt.Fprintf(&b, "--- stdout ---\n%s\n", r.Result.Stdout)
		}
		if r.Result.Stderr != "" {
			fmt.Fprintf(&b, "--- stderr ---\n%s\n", r.Result.Stderr)
		}
	}
	return b.String()
}

// Sink writes the final formatted text for one conversation. *obs.Sink's
// terminal-line writer and any compatible type (e.g. os.Stdout wrapped by
// a small adapter) may implement this.
type Sink interface {
	WriteResult(ctx context.Context, conversationID, text string) error
}

// Build assembles the terminal report agent around sink, the
// destination that receives the final formatted output.
func Build(sink Sink) *agentdef.Agent {
	b := agentdef.New[Report](Name)

	bound := agentdef.WithInput(b, "decode-result",
		func(raw json.RawMessage) (Report, error) {
			var r Result
			if err := json.Unmarshal(raw, &r); err != nil {
				return Report{}, fmt.Errorf("decode execution result: %w", err)
			}
			return Report{Result: r}, nil
		},
		func(f envelope.UpstreamFailurePayload) Report {
			return Report{Note: note{Kind: "failure", Detail: fmt.Sprintf("%s: %s", f.FromAgent, f.Error)}}
		},
		func(r envelope.UpstreamRejectionPayload) Report {
			return Report{Note: note{Kind: "rejected", Detail: fmt.Sprintf("%s blocked by %s: %s", r.FromAgent, r.GuardrailName, r.Reason)}}
		},
	)

	formatStage := process.Pure("format-report", func(r Report) (string, error) {
		return format(r), nil
	})
	staged := agentdef.AddStage(bound, formatStage)

	final := agentdef.WithTerminal(staged, func(ctx context.Context, text string, pctx pipectx.Context) error {
		return sink.WriteResult(ctx, pctx.ConversationID, text)
	})

	return agentdef.BuildTerminal(final)
}
