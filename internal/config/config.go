// Package config handles GoGrid project configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// validProviders is the set of supported LLM provider names.
var validProviders = map[string]bool{
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
}

const maxReflectionsCeiling = 10

// ProjectConfig is the top-level gogrid.yaml structure.
type ProjectConfig struct {
	// Version is the config schema version. Must be "1".
	Version string `yaml:"version"`
	// Broker configures the durable message broker shared by every agent.
	Broker BrokerConfig `yaml:"broker"`
	// Registries configures the SQLite-backed prompt/guardrail registries.
	Registries RegistriesConfig `yaml:"registries"`
	// Agents maps agent names to their configurations.
	Agents map[string]AgentConfig `yaml:"agents"`
}

// BrokerConfig describes how to reach the durable broker.
type BrokerConfig struct {
	// URL is the broker connection string (e.g. "nats://localhost:4222").
	URL string `yaml:"url"`
	// Prefetch bounds concurrently in-flight deliveries per agent runtime.
	Prefetch int `yaml:"prefetch"`
	// ConnectRetries bounds the number of reconnect attempts on startup.
	ConnectRetries int `yaml:"connect_retries"`
	// ConnectBackoff is the delay between reconnect attempts.
	ConnectBackoff Duration `yaml:"connect_backoff"`
}

// RegistriesConfig locates the SQLite-backed prompt/guardrail registries.
type RegistriesConfig struct {
	// SQLitePath is the path to the registries database file.
	SQLitePath string `yaml:"sqlite_path"`
}

// ModelConfig names the LLM backend a model-backed agent calls. Agents that
// are not model-backed (pure validation, tool execution, terminal sinks)
// leave this unset.
type ModelConfig struct {
	// Provider is the LLM backend ("openai", "anthropic", or "gemini").
	Provider string `yaml:"provider"`
	// Name is the model identifier (e.g. "gpt-4o", "claude-sonnet-4-5-20250929").
	Name string `yaml:"name"`
}

// AgentConfig defines a single agent's configuration.
type AgentConfig struct {
	// InputStream overrides the default agent_<name>_tasks stream name.
	// Empty means the runtime derives it from the agent's own name.
	InputStream string `yaml:"input_stream"`
	// OutputStream names the downstream agent's input stream. Empty marks
	// this agent as terminal.
	OutputStream string `yaml:"output_stream"`
	// Model configures the LLM backend for model-backed agents.
	Model ModelConfig `yaml:"model"`
	// Instructions is the agent's system prompt, for model-backed agents.
	Instructions string `yaml:"instructions"`
	// MaxReflections bounds the reflection loop, 0 to 10.
	MaxReflections int `yaml:"max_reflections"`
	// Guardrails lists the guardrail policy names checked against this
	// agent's output, by name in the guardrail registry.
	Guardrails []string `yaml:"guardrails"`
	// LogDir overrides the default observability sink directory for this
	// agent. Empty means the process-wide default.
	LogDir string `yaml:"log_dir"`
	// MemoryDir, if set, backs the single-agent `run` command with
	// file-persisted conversation memory instead of an in-memory-only run.
	MemoryDir string `yaml:"memory_dir"`
	// OTLPEndpoint, if set, routes this agent's spans to an OTLP-JSON
	// collector (e.g. Jaeger, Tempo) instead of recording them in memory
	// for the local run record.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// Config holds execution parameters for the single-agent `run` command.
	Config RunConfig `yaml:"config"`
}

// RunConfig holds agent execution parameters.
type RunConfig struct {
	// MaxTurns limits the number of LLM round-trips. 0 means no limit.
	MaxTurns int `yaml:"max_turns"`
	// MaxTokens limits the LLM response length per turn.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls LLM randomness (0.0-1.0). Nil means provider default.
	Temperature *float64 `yaml:"temperature"`
	// Timeout is the maximum wall-clock duration for a run (e.g. "60s", "5m").
	Timeout Duration `yaml:"timeout"`
	// CostBudget is the maximum cost in USD for a single run.
	CostBudget float64 `yaml:"cost_budget"`
}

// Duration wraps time.Duration with YAML string unmarshaling support.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "30s" or "5m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.Duration.String(), nil
}

// Load reads a gogrid.yaml file, performs environment variable substitution,
// parses the YAML, and validates the result.
func Load(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	// Substitute environment variables before parsing.
	substituted := Substitute(string(data))

	var cfg ProjectConfig
	if err := yaml.Unmarshal([]byte(substituted), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is well-formed.
func (c *ProjectConfig) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("config: unsupported version %q (expected \"1\")", c.Version)
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("config: at least one agent is required")
	}
	for name, agent := range c.Agents {
		if agent.Model.Name != "" || agent.Model.Provider != "" {
			if agent.Model.Name == "" {
				return fmt.Errorf("config: agent %q: model.name is required when model.provider is set", name)
			}
			if agent.Model.Provider == "" {
				return fmt.Errorf("config: agent %q: model.provider is required when model.name is set", name)
			}
			if !validProviders[agent.Model.Provider] {
				return fmt.Errorf("config: agent %q: unsupported provider %q (valid: openai, anthropic, gemini)", name, agent.Model.Provider)
			}
		}
		if agent.MaxReflections < 0 || agent.MaxReflections > maxReflectionsCeiling {
			return fmt.Errorf("config: agent %q: max_reflections must be in [0,%d], got %d", name, maxReflectionsCeiling, agent.MaxReflections)
		}
		if agent.OutputStream != "" && agent.OutputStream == agent.InputStream {
			return fmt.Errorf("config: agent %q: output_stream must not equal input_stream", name)
		}
	}
	return nil
}
