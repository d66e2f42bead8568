package templates

func init() {
	register(&Template{
		Name:        "team",
		Description: "Two chained pipeline-core agents over an in-memory broker",
		Files: []File{
			{Path: "gogrid.yaml", Content: teamConfig},
			{Path: "main.go", Content: teamMain},
			{Path: "Makefile", Content: teamMakefile},
			{Path: "README.md", Content: teamReadme},
		},
	})
}

const teamConfig = `version: "1"
broker:
  url: memory
  prefetch: 10
agents:
  ingest:
    output_stream: agent_plan_tasks
  plan:
    model:
      name: gpt-4o-mini
      provider: openai
    instructions: |
      You are a planner. Turn the given topic into a short shell command,
      in a fenced code block, that accomplishes it.
    max_reflections: 2
`

const teamMain = `package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lonestarx1/gogrid/agents/ingest"
	"github.com/lonestarx1/gogrid/agents/plan"
	"github.com/lonestarx1/gogrid/internal/id"
	"github.com/lonestarx1/gogrid/pkg/broker/memory"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/llm/openai"
	"github.com/lonestarx1/gogrid/pkg/modelclient"
	"github.com/lonestarx1/gogrid/pkg/obs"
	"github.com/lonestarx1/gogrid/pkg/runtime"
)

// This scaffold wires two concrete agents (ingest, plan) back to back over
// an in-memory broker to show how gogrid serve/submit compose in process.
// Run 'gogrid serve ingest' and 'gogrid serve plan' against a real NATS
// broker in separate processes for the durable equivalent.
func main() {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := memory.New()
	sink := obs.New("./logs")
	defer sink.Close()

	client := modelclient.New(openai.New(apiKey))

	ingestRuntime := runtime.New(runtime.Config{
		Agent: ingest.Build(), Broker: b, Prefetch: 10, Obs: sink,
	})
	planRuntime := runtime.New(runtime.Config{
		Agent: plan.Build(client, "gpt-4o-mini"), Broker: b, Prefetch: 10, Obs: sink,
	})

	go ingestRuntime.Run(ctx)
	go planRuntime.Run(ctx)

	planOut, err := b.Consume(ctx, runtime.StreamName("execute"), 1)
	if err != nil {
		log.Fatal(err)
	}

	payload, _ := json.Marshal(ingest.RawTask{Topic: "list the files in the current directory"})
	conversationID, traceID := id.New(), id.New()
	env := envelope.NewNormalEnvelope("submit", ingest.Name, traceID, conversationID, payload)
	data, _ := envelope.Encode(env)
	if err := b.Publish(ctx, runtime.StreamName(ingest.Name), data); err != nil {
		log.Fatal(err)
	}

	select {
	case d := <-planOut:
		var out envelope.Envelope
		json.Unmarshal(d.Data, &out)
		fmt.Printf("plan output: %s\n", out.Payload)
		d.Ack()
	case <-ctx.Done():
	}
}
`

const teamMakefile = `.PHONY: build run clean

build:
	go build -o bin/{{.Name}} .

run: build
	./bin/{{.Name}}

clean:
	rm -rf bin/
`

const teamReadme = `# {{.Name}}

A GoGrid project chaining two pipeline-core agents (ingest, plan) over an
in-memory broker.

## Setup

` + "```" + `bash
go mod tidy
export OPENAI_API_KEY=sk-...
` + "```" + `

## Run

` + "```" + `bash
# Using GoGrid CLI against a real broker, one process per agent:
gogrid serve ingest &
gogrid serve plan &
gogrid submit ingest "list the files in the current directory"
gogrid status <conversation-id>

# Or run both agents chained in one process:
go run main.go
` + "```" + `
`
