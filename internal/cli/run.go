package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lonestarx1/gogrid/internal/config"
	"github.com/lonestarx1/gogrid/internal/runrecord"
	"github.com/lonestarx1/gogrid/pkg/agent"
	"github.com/lonestarx1/gogrid/pkg/memory/file"
	"github.com/lonestarx1/gogrid/pkg/trace"
	"github.com/lonestarx1/gogrid/pkg/trace/metrics"
	"github.com/lonestarx1/gogrid/pkg/trace/otel"
)

// spanLister is satisfied by tracers that keep their recorded spans around
// for local inspection, such as trace.InMemory. An OTLP exporter ships its
// spans off-process instead, so it does not satisfy this and run records
// built against it carry no Spans.
type spanLister interface {
	Spans() []*trace.Span
}

func spansFrom(t trace.Tracer) []*trace.Span {
	if sl, ok := t.(spanLister); ok {
		return sl.Spans()
	}
	return nil
}

func (a *App) runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "gogrid.yaml", "path to gogrid.yaml")
	input := fs.String("input", "", "input text (required)")
	timeout := fs.Duration("timeout", 0, "override timeout (e.g. 30s, 5m)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() == 0 {
		a.errf("Usage: gogrid run <agent-name> [flags]\n")
		return 1
	}
	agentName := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	agentCfg, ok := cfg.Agents[agentName]
	if !ok {
		a.errf("Error: unknown agent %q\n", agentName)
		a.errf("Available agents:\n")
		for name := range cfg.Agents {
			a.errf("  - %s\n", name)
		}
		return 1
	}

	// Read input from the -input flag.
	inputText := *input
	if inputText == "" {
		a.errf("Error: no input provided (use -input flag)\n")
		return 1
	}

	if agentCfg.Model.Provider == "" {
		a.errf("Error: agent %q has no model configured (run is only for model-backed agents)\n", agentName)
		return 1
	}

	// Resolve provider.
	ctx := context.Background()
	provider, err := a.providerFactory(ctx, agentCfg.Model.Provider)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	// Build agent options.
	agentTimeout := agentCfg.Config.Timeout.Duration
	if *timeout > 0 {
		agentTimeout = *timeout
	}

	var tracer trace.Tracer
	var shutdownTracer func() error
	if agentCfg.OTLPEndpoint != "" {
		exp := otel.NewExporter(otel.WithEndpoint(agentCfg.OTLPEndpoint), otel.WithServiceName(agentName))
		tracer = exp
		shutdownTracer = exp.Shutdown
	} else {
		tracer = trace.NewInMemory()
	}
	if shutdownTracer != nil {
		defer func() { _ = shutdownTracer() }()
	}

	// Wrapping in a Collector costs nothing extra per span and gives every
	// run a Prometheus-format metrics snapshot alongside its JSON record,
	// regardless of which tracer underneath is recording spans.
	metricsReg := metrics.NewRegistry()
	tracer = metrics.NewCollector(tracer, metricsReg)

	opts := []agent.Option{
		agent.WithModel(agentCfg.Model.Name),
		agent.WithProvider(provider),
		agent.WithInstructions(agentCfg.Instructions),
		agent.WithTracer(tracer),
		agent.WithConfig(agent.Config{
			MaxTurns:    agentCfg.Config.MaxTurns,
			MaxTokens:   agentCfg.Config.MaxTokens,
			Temperature: agentCfg.Config.Temperature,
			Timeout:     agentTimeout,
			CostBudget:  agentCfg.Config.CostBudget,
		}),
	}
	if agentCfg.MemoryDir != "" {
		mem, err := file.New(agentCfg.MemoryDir)
		if err != nil {
			a.errf("Error: %v\n", err)
			return 1
		}
		opts = append(opts, agent.WithMemory(mem))
	}

	ag := agent.New(agentName, opts...)

	// Execute.
	start := time.Now()
	result, err := ag.Run(ctx, inputText)
	duration := time.Since(start)

	// Build run record.
	rec := &runrecord.Record{
		Agent:     agentName,
		Model:     agentCfg.Model.Name,
		Provider:  agentCfg.Model.Provider,
		Input:     inputText,
		StartTime: start,
		Duration:  duration,
	}

	if err != nil {
		rec.Error = err.Error()
		rec.RunID = "error-" + time.Now().Format("20060102-150405")
		rec.Spans = spansFrom(tracer)
		// Still save the record for debugging.
		_ = runrecord.Save(".", rec)
		a.errf("Error: %v\n", err)
		return 1
	}

	rec.RunID = result.RunID
	rec.Output = result.Message.Content
	rec.Turns = result.Turns
	rec.Usage = result.Usage
	rec.Cost = result.Cost
	rec.Spans = spansFrom(tracer)

	// Print response.
	a.outf("%s\n", result.Message.Content)

	// Save run record.
	if err := runrecord.Save(".", rec); err != nil {
		a.errf("Warning: failed to save run record: %v\n", err)
	} else {
		a.errf("\nRun ID: %s\n", rec.RunID)
	}
	if err := saveMetricsSnapshot(".", rec.RunID, metricsReg); err != nil {
		a.errf("Warning: failed to save metrics snapshot: %v\n", err)
	}

	return 0
}

// saveMetricsSnapshot writes reg's accumulated counters/histograms for one
// run to .gogrid/runs/<runID>.prom in Prometheus exposition format,
// alongside that run's JSON record, for local scraping or inspection.
func saveMetricsSnapshot(baseDir, runID string, reg *metrics.Registry) error {
	dir := filepath.Join(baseDir, ".gogrid", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	path := filepath.Join(dir, runID+".prom")
	if err := os.WriteFile(path, []byte(reg.Export()), 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
