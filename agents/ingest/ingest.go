// Package ingest implements the first of the four concrete agents built on
// the pipeline core: it decodes a raw task submitted by the CLI
// submitter, validates it with a pure stage, and forwards the cleaned
// TaskSpec to the planning agent. Built on agentdef's builder and
// process.Pure.
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lonestarx1/gogrid/pkg/agentdef"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/pipectx"
	"github.com/lonestarx1/gogrid/pkg/process"
)

// Name is this agent's stable identity, used to derive its input stream
// and to stamp outbound envelopes' from_agent field.
const Name = "ingest"

// DownstreamAgent names the agent this one forwards successfully-validated
// tasks to.
const DownstreamAgent = "plan"

// RawTask is the wire shape the CLI submitter publishes: a bare topic
// string with no guarantee of trimming or non-emptiness.
type RawTask struct {
	Topic string `json:"topic"`
}

// TaskSpec is the validated, trimmed task this agent hands downstream.
type TaskSpec struct {
	Topic string `json:"topic"`
}

// Build assembles the ingest agent: one input binding (decoding RawTask
// from a Normal envelope payload; ingest has no upstream agent, so the
// UpstreamFailure/UpstreamRejection projections are unreachable in
// practice but still required by the builder), one pure validation stage,
// and an output binding addressed to the planning agent.
func Build() *agentdef.Agent {
	b := agentdef.New[RawTask](Name)

	bound := agentdef.WithInput(b, "decode-task",
		func(raw json.RawMessage) (RawTask, error) {
			var t RawTask
			if err := json.Unmarshal(raw, &t); err != nil {
				return RawTask{}, fmt.Errorf("decode raw task: %w", err)
			}
			return t, nil
		},
		func(envelope.UpstreamFailurePayload) RawTask { return RawTask{} },
		func(envelope.UpstreamRejectionPayload) RawTask { return RawTask{} },
	)

	validate := process.Pure("validate-topic", func(r RawTask) (TaskSpec, error) {
		topic := strings.TrimSpace(r.Topic)
		if topic == "" {
			return TaskSpec{}, fmt.Errorf("task topic must not be empty")
		}
		return TaskSpec{Topic: topic}, nil
	})
	staged := agentdef.AddStage(bound, validate)

	out := agentdef.WithOutput(staged, DownstreamAgent, func(spec TaskSpec, _ pipectx.Context) (json.RawMessage, error) {
		return json.Marshal(spec)
	})

	return agentdef.BuildStreaming(out)
}
