package ingestion

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
	"github.com/quadguard/quadguard/internal/domain/predicate"
)

type scriptedProvider struct {
	replies []string
	calls   int
	prompts []string
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []llmclient.Message) (*llmclient.Response, error) {
	i := p.calls
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	p.calls++
	if len(messages) > 0 {
		p.prompts = append(p.prompts, messages[len(messages)-1].Content)
	}
	return &llmclient.Response{Content: p.replies[i]}, nil
}

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Load(ctx context.Context, path string) ([]byte, bool, error) {
	d, ok := c.data[path]
	return d, ok, nil
}

func (c *memCache) Store(ctx context.Context, path string, data []byte) error {
	c.data[path] = data
	return nil
}

func refinedJSON() string {
	rules := []rawRule{
		{
			Predicates:  [][4]any{{"leaking_secrets", "the agent is leaking secrets", []any{"secret", "leak"}, false}},
			Logic:       "NOT leaking_secrets",
			Description: "agents must not leak secrets",
		},
	}
	data, _ := json.Marshal(rules)
	return string(data)
}

func TestIngestRunsFourStagesAndCaches(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`[{"rule_description": "do not leak secrets", "term_definitions": []}]`,
		`[{"predicates": [["leaking_secrets", "desc", [], false]], "logic": "NOT leaking_secrets", "description": "no leaks"}]`,
		`[{"predicates": [["leaking_secrets", "desc", [], false]], "logic": "NOT leaking_secrets", "description": "no leaks"}]`,
		refinedJSON(),
	}}
	cache := newMemCache()
	p := New(provider, cache)

	rules, err := p.Ingest(context.Background(), "policy.txt", "Agents must not leak secrets.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 1 || rules[0].Logic != "NOT leaking_secrets" {
		t.Fatalf("unexpected rules: %+v", rules)
	}
	if len(rules[0].Predicates) != 1 || rules[0].Predicates[0].Name != "leaking_secrets" {
		t.Fatalf("unexpected predicates: %+v", rules[0].Predicates)
	}
	if provider.calls != 4 {
		t.Fatalf("expected exactly 4 oracle calls (one per stage), got %d", provider.calls)
	}
	if _, ok := cache.data["policy.txt"]; !ok {
		t.Fatalf("expected result to be cached")
	}
}

func TestIngestUsesCacheWithoutCallingOracle(t *testing.T) {
	provider := &scriptedProvider{replies: []string{"should never be used"}}
	cache := newMemCache()
	cache.data["policy.txt"] = []byte(`[{"Logic":"NOT leaking_secrets","Description":"d","Predicates":[{"Name":"leaking_secrets","Description":"d","Keywords":null,"Default":false}]}]`)
	p := New(provider, cache)

	rules, err := p.Ingest(context.Background(), "policy.txt", "irrelevant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected cached rule, got %+v", rules)
	}
	if provider.calls != 0 {
		t.Fatalf("expected no oracle calls on a cache hit, got %d", provider.calls)
	}
}

func TestIngestPrependsPriorFileOnSecondCall(t *testing.T) {
	provider := &scriptedProvider{replies: []string{
		`[{"rule_description": "d", "term_definitions": []}]`,
		`[{"predicates": [], "logic": "NOT x", "description": "d"}]`,
		`[{"predicates": [], "logic": "NOT x", "description": "d"}]`,
		refinedJSON(),
	}}
	p := New(provider, nil)

	if _, err := p.Ingest(context.Background(), "first.txt", "first file text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	provider.prompts = nil

	if _, err := p.Ingest(context.Background(), "second.txt", "second file text"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(provider.prompts) == 0 {
		t.Fatalf("expected at least one prompt recorded")
	}
	first := provider.prompts[0]
	if !strings.Contains(first, "first file text") || !strings.Contains(first, "second file text") {
		t.Fatalf("expected second ingest's prompt to carry both files' text, got: %s", first)
	}
}

func TestSplitIntoChunksRespectsMaxSize(t *testing.T) {
	content := "para one\npara two\npara three"
	chunks := SplitIntoChunks(content, 10)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for a small max size, got %d: %v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if c == "" {
			t.Fatalf("expected no empty chunks")
		}
	}
}

func TestSplitIntoChunksSinglePassWhenUnderMaxSize(t *testing.T) {
	chunks := SplitIntoChunks("a small document", 10000)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d: %v", len(chunks), chunks)
	}
}

func TestToRulesDeduplicatesPredicatesAndNamesRules(t *testing.T) {
	extracted := []ExtractedRule{
		{
			Logic: "NOT leaking_secrets",
			Predicates: []ExtractedPredicate{
				{Name: "leaking_secrets", Description: "d", Default: false},
			},
		},
		{
			Logic: "leaking_secrets IMPLIES alert_raised",
			Predicates: []ExtractedPredicate{
				{Name: "leaking_secrets", Description: "d", Default: false},
				{Name: "alert_raised", Description: "d2", Default: false},
			},
		},
	}
	preds, rules := ToRules(extracted, predicate.OriginMessage, "msg_rule")
	if len(preds) != 2 {
		t.Fatalf("expected deduplicated predicates, got %d: %+v", len(preds), preds)
	}
	if len(rules) != 2 || rules[0].Name != "msg_rule_0" || rules[1].Name != "msg_rule_1" {
		t.Fatalf("unexpected rule names: %+v", rules)
	}
	for _, r := range rules {
		if r.Origin != predicate.OriginMessage {
			t.Fatalf("expected message origin, got %+v", r)
		}
	}
}

func TestToRulesNamesRuleAfterDescription(t *testing.T) {
	extracted := []ExtractedRule{
		{Logic: "NOT leaking_secrets", Description: "agents must not leak secrets"},
	}
	_, rules := ToRules(extracted, predicate.OriginAction, "act_rule")
	if len(rules) != 1 || rules[0].Name != "agents must not leak secrets" {
		t.Fatalf("expected rule named after its description, got %+v", rules)
	}
}

func TestToRulesFallsBackToSyntheticNameOnDuplicateDescription(t *testing.T) {
	extracted := []ExtractedRule{
		{Logic: "NOT leaking_secrets", Description: "do not leak data"},
		{Logic: "NOT exfiltrating_data", Description: "do not leak data"},
	}
	_, rules := ToRules(extracted, predicate.OriginAction, "act_rule")
	if len(rules) != 2 {
		t.Fatalf("expected both rules kept, got %+v", rules)
	}
	if rules[0].Name != "do not leak data" {
		t.Fatalf("expected first rule to keep the description, got %q", rules[0].Name)
	}
	if rules[1].Name != "act_rule_1" {
		t.Fatalf("expected second rule to fall back to a synthetic name, got %q", rules[1].Name)
	}
}
