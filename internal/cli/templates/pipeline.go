package templates

func init() {
	register(&Template{
		Name:        "pipeline",
		Description: "Full ingest/plan/execute/report pipeline over an in-memory broker",
		Files: []File{
			{Path: "gogrid.yaml", Content: pipelineConfig},
			{Path: "main.go", Content: pipelineMain},
			{Path: "Makefile", Content: pipelineMakefile},
			{Path: "README.md", Content: pipelineReadme},
		},
	})
}

const pipelineConfig = `version: "1"
broker:
  url: memory
  prefetch: 10
registries:
  sqlite_path: ./registries.db
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
  execute:
    guardrails: []
  report:
    log_dir: ./reports
`

const pipelineMain = `package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lonestarx1/gogrid/agents/execute"
	"github.com/lonestarx1/gogrid/agents/ingest"
	"github.com/lonestarx1/gogrid/agents/plan"
	"github.com/lonestarx1/gogrid/agents/report"
	"github.com/lonestarx1/gogrid/internal/id"
	"github.com/lonestarx1/gogrid/pkg/broker/memory"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/llm/openai"
	"github.com/lonestarx1/gogrid/pkg/modelclient"
	"github.com/lonestarx1/gogrid/pkg/obs"
	"github.com/lonestarx1/gogrid/pkg/registry"
	"github.com/lonestarx1/gogrid/pkg/runtime"
	"github.com/lonestarx1/gogrid/pkg/subproc"
)

// This scaffold runs all four concrete pipeline agents (ingest, plan,
// execute, report) chained over an in-memory broker in one process, for
// local development without a NATS server. Run each with
// 'gogrid serve <agent>' against a real broker for the durable equivalent.
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

	agents := []*runtime.Runtime{
		runtime.New(runtime.Config{Agent: ingest.Build(), Broker: b, Obs: sink}),
		runtime.New(runtime.Config{Agent: plan.Build(client, "gpt-4o-mini"), Broker: b, Obs: sink}),
		runtime.New(runtime.Config{Agent: execute.Build(subproc.New(), registry.NewPolicy("none", nil)), Broker: b, Obs: sink}),
		runtime.New(runtime.Config{Agent: report.Build(report.FileSink{Dir: "./reports"}), Broker: b, Obs: sink}),
	}
	for _, rt := range agents {
		go rt.Run(ctx)
	}

	payload, _ := json.Marshal(ingest.RawTask{Topic: "Write a blog post outline about Go concurrency patterns"})
	conversationID, traceID := id.New(), id.New()
	env := envelope.NewNormalEnvelope("submit", ingest.Name, traceID, conversationID, payload)
	data, _ := envelope.Encode(env)
	if err := b.Publish(ctx, runtime.StreamName(ingest.Name), data); err != nil {
		log.Fatal(err)
	}

	log.Printf("submitted conversation %s, report will land in ./reports/%s.txt", conversationID, conversationID)
	time.Sleep(5 * time.Second)
}
`

const pipelineMakefile = `.PHONY: build run clean

build:
	go build -o bin/{{.Name}} .

run: build
	./bin/{{.Name}}

clean:
	rm -rf bin/
`

const pipelineReadme = `# {{.Name}}

A GoGrid project running the full ingest -> plan -> execute -> report
pipeline.

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
gogrid serve execute &
gogrid serve report &
gogrid submit ingest "Write a blog post outline about Go concurrency patterns"
gogrid status <conversation-id>

# Or run the whole pipeline chained in one process:
go run main.go
` + "```" + `
`
