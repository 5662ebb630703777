// Package ingestion implements the four-stage policy extraction pipeline:
// chunk, extract natural-language rules, logicize them into predicates and
// propositional logic, then verify/refine and merge/prune predicates across
// the whole document.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
	"github.com/quadguard/quadguard/internal/domain/predicate"
	"github.com/quadguard/quadguard/internal/port/outbound"
)

const (
	defaultMaxChunkSize = 10000
	defaultRetries      = 3
)

// ExtractedPredicate is one predicate definition as produced by the
// extraction/refinement stages.
type ExtractedPredicate struct {
	Name        string
	Description string
	Keywords    []string
	Default     bool
}

// ExtractedRule is one rule as produced by the pipeline: a logic expression
// over a set of predicates, plus a natural-language description.
type ExtractedRule struct {
	Predicates  []ExtractedPredicate
	Logic       string
	Description string
}

// rawRule is the wire shape the logic/VR/RP stages all share: each
// predicate is a 4-tuple [name, description, keywords, default].
type rawRule struct {
	Predicates  [][4]any `json:"predicates"`
	Logic       string   `json:"logic"`
	Description string   `json:"description"`
}

func (r rawRule) toExtractedRule() (ExtractedRule, error) {
	out := ExtractedRule{Logic: r.Logic, Description: r.Description}
	for _, raw := range r.Predicates {
		name, ok := raw[0].(string)
		if !ok {
			return ExtractedRule{}, fmt.Errorf("ingestion: predicate name is not a string: %v", raw[0])
		}
		desc, _ := raw[1].(string)
		var keywords []string
		if kws, ok := raw[2].([]any); ok {
			for _, k := range kws {
				if s, ok := k.(string); ok {
					keywords = append(keywords, s)
				}
			}
		}
		def, _ := raw[3].(bool)
		out.Predicates = append(out.Predicates, ExtractedPredicate{Name: name, Description: desc, Keywords: keywords, Default: def})
	}
	return out, nil
}

// Pipeline runs the oracle-backed extraction stages over policy documents.
type Pipeline struct {
	provider     llmclient.Provider
	cache        outbound.IngestionCache
	maxChunkSize int
	retries      int

	// rawPolicy is the raw content of the first file ingested through this
	// Pipeline. Every later Ingest call prepends it to that call's content
	// before chunking, so later extractions can reference earlier context.
	// It is set once and never updated again, matching a guard session that
	// ingests several policy files back to back.
	rawPolicy *string
}

// New builds a Pipeline backed by provider, with results cached through
// cache. cache may be nil to disable caching.
func New(provider llmclient.Provider, cache outbound.IngestionCache) *Pipeline {
	return &Pipeline{provider: provider, cache: cache, maxChunkSize: defaultMaxChunkSize, retries: defaultRetries}
}

// Ingest extracts the full rule set from content, identified by path for
// caching purposes. If a cache entry exists for path, it is returned
// without invoking the oracle. Starting with the second file ingested
// through this Pipeline, content is prepended with the first file's raw
// text before chunking (the concatenation policy).
func (p *Pipeline) Ingest(ctx context.Context, path, content string) ([]ExtractedRule, error) {
	if p.rawPolicy == nil {
		p.rawPolicy = &content
	} else {
		content = *p.rawPolicy + "\n\n" + content
	}

	if p.cache != nil {
		if data, ok, err := p.cache.Load(ctx, path); err != nil {
			return nil, fmt.Errorf("ingestion: cache load: %w", err)
		} else if ok {
			var rules []ExtractedRule
			if err := json.Unmarshal(data, &rules); err != nil {
				return nil, fmt.Errorf("ingestion: cache decode: %w", err)
			}
			return rules, nil
		}
	}

	var all []ExtractedRule
	for _, chunk := range SplitIntoChunks(content, p.maxChunkSize) {
		rules, err := p.extractFromChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		all = append(all, rules...)
	}

	if p.cache != nil {
		data, err := json.Marshal(all)
		if err != nil {
			return nil, fmt.Errorf("ingestion: cache encode: %w", err)
		}
		if err := p.cache.Store(ctx, path, data); err != nil {
			return nil, fmt.Errorf("ingestion: cache store: %w", err)
		}
	}
	return all, nil
}

// extractFromChunk runs one chunk through the four oracle stages: extract
// natural-language rules, translate to logic/predicates, verify the
// predicates, then refine (merge/prune) them. Only the final stage decodes
// structured JSON directly; the intermediate stages pass the oracle's raw
// text straight to the next stage, mirroring the original pipeline, which
// never parses the intermediate representations either.
func (p *Pipeline) extractFromChunk(ctx context.Context, chunk string) ([]ExtractedRule, error) {
	facts, err := p.complete(ctx, policyExtractionSystem, policyExtractionUser, chunk)
	if err != nil {
		return nil, fmt.Errorf("ingestion: extract policy: %w", err)
	}
	logic, err := p.complete(ctx, logicExtractionSystem, logicExtractionUser, facts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: extract logic: %w", err)
	}
	verified, err := p.complete(ctx, verifySystem, verifyUser, logic)
	if err != nil {
		return nil, fmt.Errorf("ingestion: verify predicates: %w", err)
	}
	return p.refine(ctx, verified)
}

// refine is the final stage, which merges/prunes predicates and is the
// only stage whose output this pipeline parses as structured JSON (via
// CompleteJSON's retry loop), matching the original's use of
// retry_extract_json only at the RP stage.
func (p *Pipeline) refine(ctx context.Context, content string) ([]ExtractedRule, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: refineSystem},
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(refineUser, content)},
	}
	var raws []rawRule
	if err := llmclient.CompleteJSON(ctx, p.provider, messages, &raws, p.retries); err != nil {
		return nil, fmt.Errorf("ingestion: refine predicates: %w", err)
	}
	rules := make([]ExtractedRule, 0, len(raws))
	for _, raw := range raws {
		rule, err := raw.toExtractedRule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (p *Pipeline) complete(ctx context.Context, system, userTemplate, content string) (string, error) {
	messages := []llmclient.Message{
		{Role: llmclient.RoleSystem, Content: system},
		{Role: llmclient.RoleUser, Content: fmt.Sprintf(userTemplate, content)},
	}
	resp, err := p.provider.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// SplitIntoChunks splits content into newline-delimited paragraphs, packing
// complete paragraphs into chunks that never exceed maxSize characters
// (except a single paragraph longer than maxSize on its own, which is kept
// whole rather than cut mid-sentence).
func SplitIntoChunks(content string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = defaultMaxChunkSize
	}
	paragraphs := strings.Split(content, "\n")

	var chunks []string
	var current strings.Builder
	for _, paragraph := range paragraphs {
		if current.Len()+len(paragraph)+1 > maxSize && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString(paragraph)
			continue
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(paragraph)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// ToRules converts the pipeline's extracted rules into predicate.Rule
// values, named after each rule's natural-language Description (the
// extraction stage never assigns a stable identifier of its own), plus the
// full set of predicate.Predicate definitions they reference, ready for
// predicate.Store.UpsertPredicate and AddActionPolicy/AddMessagePolicy. A
// rule with an empty or duplicate description falls back to
// "<namePrefix>_<i>" so it is never silently dropped from the policy set.
func ToRules(extracted []ExtractedRule, origin predicate.PolicyOrigin, namePrefix string) ([]predicate.Predicate, []predicate.Rule) {
	var predicates []predicate.Predicate
	rules := make([]predicate.Rule, 0, len(extracted))
	seen := make(map[string]bool)
	usedNames := make(map[string]bool)
	for i, e := range extracted {
		for _, p := range e.Predicates {
			if seen[p.Name] {
				continue
			}
			seen[p.Name] = true
			predicates = append(predicates, predicate.Predicate{
				Name:        p.Name,
				Description: p.Description,
				Keywords:    p.Keywords,
				Default:     p.Default,
			})
		}
		name := e.Description
		if name == "" || usedNames[name] {
			name = fmt.Sprintf("%s_%d", namePrefix, i)
		}
		usedNames[name] = true
		rules = append(rules, predicate.Rule{
			Name:   name,
			Logic:  e.Logic,
			Origin: origin,
		})
	}
	return predicates, rules
}
