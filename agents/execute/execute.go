// Package execute implements the third concrete agent: a tool-backed
// subprocess invocation guarded by a guardrail check before the result
// is forwarded to the reporting agent. Built on process.Tool and
// agentdef.WithGuard.
package execute

import (
	"encoding/json"
	"fmt"

	"github.com/lonestarx1/gogrid/agents/plan"
	"github.com/lonestarx1/gogrid/pkg/agentdef"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/process"
	"github.com/lonestarx1/gogrid/pkg/registry"
	"github.com/lonestarx1/gogrid/pkg/subproc"
)

// Name is this agent's stable identity.
const Name = "execute"

// DownstreamAgent names the terminal agent execution results are reported to.
const DownstreamAgent = "report"

// DefaultTimeoutSeconds bounds every subprocess invocation absent an
// override; it is the tool's own timeout, not a framework-level deadline.
const DefaultTimeoutSeconds = 10

// Plan mirrors agents/plan.Plan — the wire shape this agent decodes from
// the planning agent's output stream.
type Plan = plan.Plan

// Result is the outcome of running a Plan's shell command, forwarded to
// the reporting agent.
type Result struct {
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	ExitCode        int    `json:"exitCode"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

func toRequest(p Plan, _ pipectx.Context) string {
	req := subproc.Request{Code: p.Shell, TimeoutSeconds: DefaultTimeoutSeconds}
	data, _ := json.Marshal(req)
	return string(data)
}

func fromResult(output string) (Result, error) {
	var r subproc.Result
	if err := json.Unmarshal([]byte(output), &r); err != nil {
		return Result{}, fmt.Errorf("decode subprocess result: %w", err)
	}
	return Result{
		Stdout:          r.Stdout,
		Stderr:          r.Stderr,
		ExitCode:        r.ExitCode,
		ExecutionTimeMs: r.ExecutionTimeMs,
	}, nil
}

// Build assembles the execute agent around tool (subproc.Executor
// satisfies process.ToolInvoker) and policy, a guardrail loaded from
// pkg/registry that blocks results containing banned terms. An empty
// policy (no banned terms) behaves as identity.
func Build(tool process.ToolInvoker, policy registry.Policy) *agentdef.Agent {
	b := agentdef.New[Plan](Name)

	bound := agentdef.WithInput(b, "decode-plan",
		func(raw json.RawMessage) (Plan, error) {
			var p Plan
			if err := json.Unmarshal(raw, &p); err != nil {
				return Plan{}, fmt.Errorf("decode plan: %w", err)
			}
			return p, nil
		},
		func(f envelope.UpstreamFailurePayload) Plan {
			return Plan{Shell: fmt.Sprintf("echo 'upstream failure in %s: %s'", f.FromAgent, f.Error)}
		},
		func(r envelope.UpstreamRejectionPayload) Plan {
			return Plan{Shell: fmt.Sprintf("echo 'upstream rejection by %s in %s: %s'", r.GuardrailName, r.FromAgent, r.Reason)}
		},
	)

	runStage := process.Tool(
		"run-shell",
		process.Reflection{Max: 1},
		func(p Plan, _ string) Plan { return p },
		tool,
		toRequest,
		fromResult,
	)
	staged := agentdef.AddStage(bound, runStage)

	guarded := agentdef.WithGuard(staged, "guardrail", func(r Result, _ pipectx.Context) (bool, string, string) {
		return policy.Check(r.Stdout)
	})

	out := agentdef.WithOutput(guarded, DownstreamAgent, func(r Result, _ pipectx.Context) (json.RawMessage, error) {
		return json.Marshal(r)
	})

	return agentdef.BuildStreaming(out)
}
