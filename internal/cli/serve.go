package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lonestarx1/gogrid/agents/execute"
	"github.com/lonestarx1/gogrid/agents/ingest"
	"github.com/lonestarx1/gogrid/agents/plan"
	"github.com/lonestarx1/gogrid/agents/report"
	"github.com/lonestarx1/gogrid/internal/config"
	"github.com/lonestarx1/gogrid/pkg/agentdef"
	"github.com/lonestarx1/gogrid/pkg/broker"
	"github.com/lonestarx1/gogrid/pkg/broker/memory"
	"github.com/lonestarx1/gogrid/pkg/broker/natsjs"
	"github.com/lonestarx1/gogrid/pkg/modelclient"
	"github.com/lonestarx1/gogrid/pkg/obs"
	"github.com/lonestarx1/gogrid/pkg/registry"
	"github.com/lonestarx1/gogrid/pkg/runtime"
	"github.com/lonestarx1/gogrid/pkg/subproc"
)

// runServe starts one of the four concrete agents' (agents/ingest, /plan,
// /execute, /report) long-running broker consumer loop. It blocks until
// an interrupt/terminate signal arrives, then drains in-flight messages
// before returning.
func (a *App) runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "gogrid.yaml", "path to gogrid.yaml")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() == 0 {
		a.errf("Usage: gogrid serve <agent-name> [flags]\n")
		a.errf("Known agents: ingest, plan, execute, report\n")
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
		a.errf("Error: unknown agent %q in %s\n", agentName, *configPath)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	def, err := a.buildAgentDefinition(ctx, agentName, agentCfg, cfg)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	b, err := a.connectBroker(ctx, cfg.Broker)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	logDir := agentCfg.LogDir
	if logDir == "" {
		logDir = "./logs"
	}
	sink := obs.New(logDir, obs.WithRetry(3, 100*time.Millisecond), obs.WithDropHandler(func(path string, err error) {
		a.errf("Warning: observability sink write to %s failed: %v\n", path, err)
	}))
	defer sink.Close()

	rt := runtime.New(runtime.Config{
		Agent:    def,
		Broker:   b,
		Prefetch: cfg.Broker.Prefetch,
		Obs:      sink,
		Log:      stdlogPrinter{a},
	})

	a.errf("gogrid: serving agent %q on stream %q\n", agentName, runtime.StreamName(agentName))
	if err := rt.Run(ctx); err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}
	return 0
}

// stdlogPrinter adapts App's stderr writer to runtime.Printer.
type stdlogPrinter struct{ app *App }

func (p stdlogPrinter) Printf(format string, args ...any) {
	p.app.errf(format+"\n", args...)
}

func (a *App) connectBroker(ctx context.Context, cfg config.BrokerConfig) (broker.Broker, error) {
	if cfg.URL == "" || cfg.URL == "memory" {
		return memory.New(), nil
	}
	return natsjs.Connect(ctx, natsjs.Config{
		URL:            cfg.URL,
		ConnectRetries: cfg.ConnectRetries,
		ConnectBackoff: cfg.ConnectBackoff.Duration,
	})
}

// buildAgentDefinition maps a configured agent name to its concrete
// implementation in agents/*, wiring each one's external collaborators
// (model client, tool executor, guardrail registry, terminal sink) from
// cfg.
func (a *App) buildAgentDefinition(ctx context.Context, agentName string, agentCfg config.AgentConfig, cfg *config.ProjectConfig) (*agentdef.Agent, error) {
	switch agentName {
	case ingest.Name:
		return ingest.Build(), nil

	case plan.Name:
		provider, err := a.providerFactory(ctx, agentCfg.Model.Provider)
		if err != nil {
			return nil, fmt.Errorf("resolve model provider: %w", err)
		}
		client := modelclient.New(provider, modelclient.WithSystemPrompt(agentCfg.Instructions))
		return plan.Build(client, agentCfg.Model.Name), nil

	case execute.Name:
		policy, err := loadGuardrailPolicy(ctx, cfg.Registries.SQLitePath, agentCfg.Guardrails)
		if err != nil {
			return nil, err
		}
		return execute.Build(subproc.New(), policy), nil

	case report.Name:
		dir := agentCfg.LogDir
		if dir == "" {
			dir = "./reports"
		}
		return report.Build(report.FileSink{Dir: dir}), nil

	default:
		return nil, fmt.Errorf("unknown agent %q (known: ingest, plan, execute, report)", agentName)
	}
}

// loadGuardrailPolicy loads and merges the named guardrail policies from
// the SQLite registry. With no configured policies, it returns the empty
// Policy, which behaves as identity.
func loadGuardrailPolicy(ctx context.Context, sqlitePath string, names []string) (registry.Policy, error) {
	if len(names) == 0 {
		return registry.Policy{Name: "none"}, nil
	}
	reg, err := registry.OpenGuardrailRegistry(sqlitePath)
	if err != nil {
		return registry.Policy{}, fmt.Errorf("open guardrail registry: %w", err)
	}
	defer reg.Close()

	var bannedTerms []string
	for _, name := range names {
		p, err := reg.Policy(ctx, name)
		if err != nil {
			return registry.Policy{}, fmt.Errorf("load guardrail policy %q: %w", name, err)
		}
		bannedTerms = append(bannedTerms, p.BannedTerms...)
	}
	return registry.NewPolicy(names[0], bannedTerms), nil
}
