// Package registry implements the read-only SQLite-backed prompt and
// guardrail registries referenced in spec's "thin wrappers" list. Grounded
// on modernc.org/sqlite (pure Go, no cgo — the convention shared with
// tjfontaine-polyglot-llm-gateway and aladin2907-overhuman) accessed
// through database/sql, and on AltairaLabs-PromptKit's
// hooks/guardrails.BannedWordsHook for the banned-word matching semantics
// a guardrail policy enforces.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"
)

// PromptRegistry serves named prompt templates from a read-only SQLite
// database. Per spec's shared-resource policy, registries are read-only
// and safely shared across concurrently running agents.
type PromptRegistry struct {
	db *sql.DB
}

// OpenPromptRegistry opens the SQLite database at path in read-only mode.
func OpenPromptRegistry(path string) (*PromptRegistry, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("registry: open prompt db: %w", err)
	}
	return &PromptRegistry{db: db}, nil
}

// Get returns the template text stored under name.
func (r *PromptRegistry) Get(ctx context.Context, name string) (string, error) {
	var template string
	err := r.db.QueryRowContext(ctx, `SELECT template FROM prompts WHERE name = ?`, name).Scan(&template)
	if err != nil {
		return "", fmt.Errorf("registry: get prompt %q: %w", name, err)
	}
	return template, nil
}

// Close closes the underlying database handle.
func (r *PromptRegistry) Close() error {
	return r.db.Close()
}

// Policy is one named guardrail: a set of banned terms matched
// case-insensitively with word boundaries, mirroring BannedWordsHook.
type Policy struct {
	Name        string
	BannedTerms []string
	patterns    []*regexp.Regexp
}

func compile(terms []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(terms))
	for i, term := range terms {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
	}
	return patterns
}

// NewPolicy builds a Policy from a name and its banned terms, compiling
// the matching patterns. Used to merge multiple named policies loaded
// from a GuardrailRegistry into one.
func NewPolicy(name string, bannedTerms []string) Policy {
	return Policy{Name: name, BannedTerms: bannedTerms, patterns: compile(bannedTerms)}
}

// Check returns (true, "", "") when text violates no banned term, or
// (false, p.Name, reason) on the first violation found.
func (p Policy) Check(text string) (pass bool, policyName string, reason string) {
	for i, pattern := range p.patterns {
		if pattern.MatchString(text) {
			return false, p.Name, "banned term detected: " + p.BannedTerms[i]
		}
	}
	return true, "", ""
}

// GuardrailRegistry serves named guardrail policies from a read-only
// SQLite database.
type GuardrailRegistry struct {
	db *sql.DB
}

// OpenGuardrailRegistry opens the SQLite database at path in read-only
// mode.
func OpenGuardrailRegistry(path string) (*GuardrailRegistry, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("registry: open guardrail db: %w", err)
	}
	return &GuardrailRegistry{db: db}, nil
}

// Policy loads one named guardrail policy and its banned terms.
func (r *GuardrailRegistry) Policy(ctx context.Context, name string) (Policy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT term FROM guardrail_terms WHERE policy_name = ?`, name)
	if err != nil {
		return Policy{}, fmt.Errorf("registry: load policy %q: %w", name, err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			return Policy{}, fmt.Errorf("registry: scan policy %q term: %w", name, err)
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return Policy{}, fmt.Errorf("registry: iterate policy %q terms: %w", name, err)
	}

	return Policy{Name: name, BannedTerms: terms, patterns: compile(terms)}, nil
}

// Close closes the underlying database handle.
func (r *GuardrailRegistry) Close() error {
	return r.db.Close()
}
