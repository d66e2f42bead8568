// Package plan implements the second concrete agent: a model-backed
// planning step with a bounded reflection loop that turns a validated
// TaskSpec into an executable Plan. Built on process.Model and
// agentdef's propagation-aware input binding.
package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lonestarx1/gogrid/agents/ingest"
	"github.com/lonestarx1/gogrid/pkg/agentdef"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/process"
)

// Name is this agent's stable identity.
const Name = "plan"

// DownstreamAgent names the agent a generated Plan is forwarded to.
const DownstreamAgent = "execute"

// MaxReflections bounds the planning process's retry budget.
const MaxReflections = 2

// TaskSpec mirrors agents/ingest.TaskSpec — the wire shape this agent
// decodes from ingest's output stream.
type TaskSpec = ingest.TaskSpec

// Plan is a model-generated shell command (plus the human-readable steps
// that produced it) handed to the execute agent.
type Plan struct {
	Steps []string `json:"steps"`
	Shell string   `json:"shell"`
}

var fencedCode = regexp.MustCompile("(?s)```(?:[a-zA-Z]*\n)?(.*?)```")

// parsePlan recovers a Plan from a model's free-text response: a fenced
// code block (if present) becomes Shell; every non-empty line becomes a
// step.
func parsePlan(response string) (Plan, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return Plan{}, fmt.Errorf("empty model response")
	}

	shell := ""
	if m := fencedCode.FindStringSubmatch(response); m != nil {
		shell = strings.TrimSpace(m[1])
	}

	var steps []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			steps = append(steps, line)
		}
	}
	if shell == "" {
		shell = "echo '" + strings.ReplaceAll(steps[0], "'", "'\\''") + "'"
	}
	return Plan{Steps: steps, Shell: shell}, nil
}

func buildPrompt(spec TaskSpec, _ pipectx.Context) string {
	return "Produce a short shell command, in a fenced code block, that " +
		"accomplishes this task: " + spec.Topic
}

// Build assembles the plan agent around client (a process.ModelClient
// wrapping one of pkg/modelclient's provider adapters) and model (the
// model identifier to call). opts are forwarded to process.Model, letting
// the caller attach an observability hook (process.WithModelObserver).
func Build(client process.ModelClient, model string, opts ...process.ModelOption) *agentdef.Agent {
	b := agentdef.New[TaskSpec](Name)

	bound := agentdef.WithInput(b, "decode-task",
		func(raw json.RawMessage) (TaskSpec, error) {
			var spec TaskSpec
			if err := json.Unmarshal(raw, &spec); err != nil {
				return TaskSpec{}, fmt.Errorf("decode task spec: %w", err)
			}
			return spec, nil
		},
		func(f envelope.UpstreamFailurePayload) TaskSpec {
			return TaskSpec{Topic: fmt.Sprintf("(recovering from upstream failure in %s: %s)", f.FromAgent, f.Error)}
		},
		func(r envelope.UpstreamRejectionPayload) TaskSpec {
			return TaskSpec{Topic: fmt.Sprintf("(recovering from rejection by %s in %s: %s)", r.GuardrailName, r.FromAgent, r.Reason)}
		},
	)

	planStage := process.Model(
		"generate-plan",
		process.Reflection{Max: MaxReflections},
		func(spec TaskSpec, _ string) TaskSpec {
			// onFailure rewrite: ask again, more directly, on retry.
			return TaskSpec{Topic: spec.Topic + " (be more concise and use a single fenced shell command)"}
		},
		client,
		model,
		buildPrompt,
		parsePlan,
		opts...,
	)
	staged := agentdef.AddStage(bound, planStage)

	out := agentdef.WithOutput(staged, DownstreamAgent, func(p Plan, _ pipectx.Context) (json.RawMessage, error) {
		return json.Marshal(p)
	})

	return agentdef.BuildStreaming(out)
}
