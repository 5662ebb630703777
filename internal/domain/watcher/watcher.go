// Package watcher implements the two oracle-backed observers that keep the
// guard's world-model current: the predicate watcher (updates boolean
// predicate values from the latest observation) and the threat watcher
// (adjusts a sender's threat level; the oracle is told to move it by at most
// one step per observation, and the result is clamped to 0-4).
// Both are fail-open: an oracle failure after retries leaves the relevant
// state unchanged rather than blocking the pipeline.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
)

const defaultRetries = 3

// PredicateWatcher updates predicate values from observations via an LLM
// oracle.
type PredicateWatcher struct {
	provider llmclient.Provider
	logger   *slog.Logger
	retries  int
}

// NewPredicateWatcher returns a PredicateWatcher backed by provider.
func NewPredicateWatcher(provider llmclient.Provider, logger *slog.Logger) *PredicateWatcher {
	return &PredicateWatcher{provider: provider, logger: logger, retries: defaultRetries}
}

// Update asks the oracle which predicates should change given observation,
// against the current snapshot of predicate descriptions/keywords/values
// (current). It returns the oracle's reply as decoded, which the prompt
// limits to the predicates whose value should change; the reply is not
// filtered against current. On oracle failure it returns a nil map and nil
// error (fail open: no change), logging the failure at Warn.
func (w *PredicateWatcher) Update(ctx context.Context, observation string, current map[string]PredicateSnapshot) (map[string]bool, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: predicateSystemPrompt},
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(predicateUserTemplate, observation, formatPredicates(current))},
	}

	var updates map[string]bool
	if err := llmclient.CompleteJSON(ctx, w.provider, messages, &updates, w.retries); err != nil {
		if w.logger != nil {
			w.logger.Warn("predicate watcher oracle failed, leaving predicates unchanged", "error", err)
		}
		return nil, nil
	}
	return updates, nil
}

// PredicateSnapshot is the read-only view of a predicate a watcher reasons
// over.
type PredicateSnapshot struct {
	Name        string
	Description string
	Keywords    []string
	Value       bool
}

func formatPredicates(snapshots map[string]PredicateSnapshot) string {
	var b strings.Builder
	for name, s := range snapshots {
		fmt.Fprintf(&b, "- %s: %s (keywords: %s, current value: %t)\n", name, s.Description, strings.Join(s.Keywords, ", "), s.Value)
	}
	return b.String()
}

// ThreatWatcher adjusts a sender's threat level from observations via an LLM
// oracle. The prompt asks for a change of at most one step; the code does
// not enforce that limit and only clamps the reply to [0, 4].
type ThreatWatcher struct {
	provider llmclient.Provider
	logger   *slog.Logger
	retries  int
}

// NewThreatWatcher returns a ThreatWatcher backed by provider.
func NewThreatWatcher(provider llmclient.Provider, logger *slog.Logger) *ThreatWatcher {
	return &ThreatWatcher{provider: provider, logger: logger, retries: defaultRetries}
}

// Update returns the new threat level for a sender given the latest
// observation and its current level (0-4). On oracle failure it returns
// currentLevel unchanged (fail open), logging the failure at Warn. The
// returned level is clamped to [0, 4] regardless of what the oracle returns.
func (w *ThreatWatcher) Update(ctx context.Context, observation string, currentLevel int) int {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: threatSystemPrompt},
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(threatUserTemplate, observation, currentLevel)},
	}

	var result struct {
		ThreatLevel int `json:"threat_level"`
	}
	if err := llmclient.CompleteJSON(ctx, w.provider, messages, &result, w.retries); err != nil {
		if w.logger != nil {
			w.logger.Warn("threat watcher oracle failed, leaving threat level unchanged", "error", err, "sender_level", currentLevel)
		}
		return currentLevel
	}

	level := result.ThreatLevel
	if level < 0 {
		level = 0
	}
	if level > 4 {
		level = 4
	}
	return level
}
