package cli

import (
	"context"
	"encoding/json"
	"flag"

	"github.com/lonestarx1/gogrid/agents/ingest"
	"github.com/lonestarx1/gogrid/internal/config"
	"github.com/lonestarx1/gogrid/internal/id"
	"github.com/lonestarx1/gogrid/pkg/envelope"
	"github.com/lonestarx1/gogrid/pkg/runtime"
)

// runSubmit publishes a single Normal envelope carrying topic onto
// agentName's input stream, starting a fresh conversation. It prints the
// generated conversation id so the caller can pass it to `gogrid status`.
func (a *App) runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "gogrid.yaml", "path to gogrid.yaml")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 2 {
		a.errf("Usage: gogrid submit <agent-name> <topic> [flags]\n")
		return 1
	}
	agentName, topic := fs.Arg(0), fs.Arg(1)

	cfg, err := config.Load(*configPath)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if _, ok := cfg.Agents[agentName]; !ok {
		a.errf("Error: unknown agent %q in %s\n", agentName, *configPath)
		return 1
	}

	payload, err := json.Marshal(ingest.RawTask{Topic: topic})
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	b, err := a.connectBroker(ctx, cfg.Broker)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	defer b.Close()

	conversationID := id.New()
	traceID := id.New()
	stream := runtime.StreamName(agentName)

	if err := b.EnsureStream(ctx, stream); err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	env := envelope.NewNormalEnvelope("submit", agentName, traceID, conversationID, payload)
	data, err := envelope.Encode(env)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	if err := b.Publish(ctx, stream, data); err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	a.outf("conversation_id: %s\n", conversationID)
	return 0
}
