package cli

import (
	"flag"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/lonestarx1/gogrid/internal/config"
	"github.com/lonestarx1/gogrid/pkg/runtime"
)

func (a *App) runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "gogrid.yaml", "path to gogrid.yaml")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		a.errf("Error: %v\n", err)
		return 1
	}

	// Sort agent names for stable output.
	names := make([]string, 0, len(cfg.Agents))
	for name := range cfg.Agents {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPROVIDER\tMODEL\tINPUT\tOUTPUT")
	for _, name := range names {
		agent := cfg.Agents[name]
		inputStream := agent.InputStream
		if inputStream == "" {
			inputStream = runtime.StreamName(name)
		}
		outputStream := agent.OutputStream
		if outputStream == "" {
			outputStream = "(terminal)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, agent.Model.Provider, agent.Model.Name, inputStream, outputStream)
	}
	_ = w.Flush()

	return 0
}
