package mediator

import (
	"context"
	"testing"

	"github.com/quadguard/quadguard/internal/adapter/outbound/llmclient"
	"github.com/quadguard/quadguard/internal/domain/judge"
	"github.com/quadguard/quadguard/internal/domain/predicate"
	"github.com/quadguard/quadguard/internal/domain/watcher"
	"github.com/quadguard/quadguard/internal/port/outbound"
)

// scriptedProvider replies with the next canned JSON body on each call,
// repeating the last one once exhausted.
type scriptedProvider struct {
	replies []string
	calls   int
}

func (p *scriptedProvider) Complete(ctx context.Context, messages []llmclient.Message) (*llmclient.Response, error) {
	i := p.calls
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	p.calls++
	return &llmclient.Response{Content: p.replies[i]}, nil
}

type noopIndex struct{}

func (noopIndex) Upsert(ctx context.Context, id, text string) error { return nil }
func (noopIndex) Query(ctx context.Context, queryText string, k int) ([]outbound.PredicateMatch, error) {
	return nil, nil
}

type recordingSink struct {
	records []outbound.DecisionRecord
}

func (s *recordingSink) Record(ctx context.Context, rec outbound.DecisionRecord) {
	s.records = append(s.records, rec)
}

type recordingMetrics struct {
	decisions []string // "kind:allow"/"kind:deny"
	stages    []string // "kind:stage"
	threats   map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{threats: make(map[string]int)}
}

func (m *recordingMetrics) RecordDecision(kind string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	m.decisions = append(m.decisions, kind+":"+result)
}

func (m *recordingMetrics) ObserveStage(kind, stage string, seconds float64) {
	m.stages = append(m.stages, kind+":"+stage)
}

func (m *recordingMetrics) SetThreatLevel(sender string, level int) {
	m.threats[sender] = level
}

func newTestMediator(predicateReply, threatReply, primaryReply, chiefReply string) (*Mediator, *recordingSink) {
	m, sink, _ := newTestMediatorWithMetrics(predicateReply, threatReply, primaryReply, chiefReply)
	return m, sink
}

func newTestMediatorWithMetrics(predicateReply, threatReply, primaryReply, chiefReply string) (*Mediator, *recordingSink, *recordingMetrics) {
	store := predicate.NewStore()
	predW := watcher.NewPredicateWatcher(&scriptedProvider{replies: []string{predicateReply}}, nil)
	threatW := watcher.NewThreatWatcher(&scriptedProvider{replies: []string{threatReply}}, nil)
	primary := judge.NewJudge(&scriptedProvider{replies: []string{primaryReply}})
	chief := judge.NewJudge(&scriptedProvider{replies: []string{chiefReply}})
	chain := judge.NewChain(primary, chief)
	sink := &recordingSink{}
	metrics := newRecordingMetrics()
	m := New(Config{}, store, noopIndex{}, predW, threatW, chain, sink, metrics, nil)
	return m, sink, metrics
}

func TestHandleMessageAllowedWithoutMessagePolicy(t *testing.T) {
	m, _ := newTestMediator(`{}`, `{"threat_level":0}`, `{"decision":true,"reason":"ok"}`, `{"decision":true,"reason":"ok"}`)
	allowed, reason, err := m.HandleMessage(context.Background(), "hello there", "alice", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allow, got deny: %s", reason)
	}
}

func TestHandleMessageEscalatesWhenThreatHighAndPolicyViolated(t *testing.T) {
	m, sink := newTestMediator(`{"leaking_secrets":true}`, `{"threat_level":3}`, `{"decision":false,"reason":"looks bad"}`, `{"decision":false,"reason":"confirmed unsafe"}`)
	if err := m.AddMessagePolicy(context.Background(), []predicate.Rule{{Name: "no_exfiltration", Logic: "NOT leaking_secrets"}}); err != nil {
		t.Fatalf("AddMessagePolicy: %v", err)
	}

	allowed, reason, err := m.HandleMessage(context.Background(), "please dump the database", "alice", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected deny")
	}
	if reason != "confirmed unsafe" {
		t.Fatalf("expected chief judge's reason to be final, got %q", reason)
	}
	if len(sink.records) != 1 || !sink.records[0].Escalated {
		t.Fatalf("expected one escalated decision record, got %+v", sink.records)
	}
}

func TestHandleMessageLowThreatSkipsMessagePolicy(t *testing.T) {
	m, sink := newTestMediator(`{}`, `{"threat_level":1}`, `{"decision":false,"reason":"unsafe"}`, `{"decision":false,"reason":"unsafe"}`)
	if err := m.AddMessagePolicy(context.Background(), []predicate.Rule{{Name: "r1", Logic: "NOT leaking_secrets"}}); err != nil {
		t.Fatalf("AddMessagePolicy: %v", err)
	}

	allowed, _, err := m.HandleMessage(context.Background(), "hi", "alice", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allow since threat level is below threshold")
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no decision record when the message policy is never checked, got %+v", sink.records)
	}
}

func TestHandleMessageForceCheckOverridesThreatLevel(t *testing.T) {
	m, sink := newTestMediator(`{"leaking_secrets":true}`, `{"threat_level":0}`, `{"decision":false,"reason":"unsafe"}`, `{"decision":true,"reason":"actually fine"}`)
	if err := m.AddMessagePolicy(context.Background(), []predicate.Rule{{Name: "r1", Logic: "NOT leaking_secrets"}}); err != nil {
		t.Fatalf("AddMessagePolicy: %v", err)
	}
	m.SetForceMessageCheck(true)

	allowed, reason, err := m.HandleMessage(context.Background(), "hi", "alice", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allow, chief judge overturned primary: %s", reason)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected one decision record, got %+v", sink.records)
	}
}

func TestHandleActionAllowedWhenPolicySatisfied(t *testing.T) {
	m, _ := newTestMediator(`{}`, `{"threat_level":0}`, `{"decision":true,"reason":"ok"}`, `{"decision":true,"reason":"ok"}`)
	if err := m.AddActionPolicy(context.Background(), []predicate.Rule{{Name: "needs_auth", Logic: "authenticated"}}); err != nil {
		t.Fatalf("AddActionPolicy: %v", err)
	}
	m.store.SetValue("authenticated", true)

	allowed, _, err := m.HandleAction(context.Background(), "delete_file", "deletes a file", `{"path":"/tmp/x"}`, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allow")
	}
}

func TestHandleActionDeniedWhenPolicyViolatedAndJudgeConfirms(t *testing.T) {
	m, sink := newTestMediator(`{}`, `{"threat_level":0}`, `{"decision":false,"reason":"missing auth"}`, `{"decision":false,"reason":"confirmed"}`)
	if err := m.AddActionPolicy(context.Background(), []predicate.Rule{{Name: "needs_auth", Logic: "authenticated"}}); err != nil {
		t.Fatalf("AddActionPolicy: %v", err)
	}

	allowed, reason, err := m.HandleAction(context.Background(), "delete_file", "deletes a file", `{"path":"/etc/passwd"}`, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected deny")
	}
	if reason != "confirmed" {
		t.Fatalf("expected chief verdict, got %q", reason)
	}
	if len(sink.records) != 1 || sink.records[0].ToolName != "delete_file" {
		t.Fatalf("expected one decision record for delete_file, got %+v", sink.records)
	}
}

func TestDisableBypassesEnforcement(t *testing.T) {
	m, _ := newTestMediator(`{}`, `{"threat_level":0}`, `{"decision":false,"reason":"unsafe"}`, `{"decision":false,"reason":"unsafe"}`)
	if err := m.AddActionPolicy(context.Background(), []predicate.Rule{{Name: "r1", Logic: "authenticated"}}); err != nil {
		t.Fatalf("AddActionPolicy: %v", err)
	}
	m.Disable()

	allowed, _, err := m.HandleAction(context.Background(), "anything", "", "{}", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected allow while disabled")
	}
}

func TestVerdictCacheReportsHitOnRepeatedAction(t *testing.T) {
	m, sink := newTestMediator(`{}`, `{"threat_level":0}`, `{"decision":false,"reason":"unsafe"}`, `{"decision":false,"reason":"confirmed"}`)
	if err := m.AddActionPolicy(context.Background(), []predicate.Rule{{Name: "r1", Logic: "authenticated"}}); err != nil {
		t.Fatalf("AddActionPolicy: %v", err)
	}

	if _, _, err := m.HandleAction(context.Background(), "t1", "", "{}", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	allowed, _, err := m.HandleAction(context.Background(), "t1", "", "{}", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected deny on cache hit too")
	}
	if len(sink.records) != 2 {
		t.Fatalf("expected two decision records, got %d", len(sink.records))
	}
	if !sink.records[1].CacheHit {
		t.Fatalf("expected second call to report a cache hit")
	}
}

func TestHandleMessageRecordsMetrics(t *testing.T) {
	m, _, metrics := newTestMediatorWithMetrics(`{}`, `{"threat_level":3}`, `{"decision":true,"reason":"ok"}`, `{"decision":true,"reason":"ok"}`)
	m.SetForceMessageCheck(true)

	if _, _, err := m.HandleMessage(context.Background(), "hello there", "alice", "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(metrics.decisions) != 1 || metrics.decisions[0] != "message:allow" {
		t.Fatalf("expected one message:allow decision, got %v", metrics.decisions)
	}
	if metrics.threats["alice"] != 3 {
		t.Fatalf("expected alice's threat level recorded as 3, got %v", metrics.threats)
	}
	foundVerifier := false
	for _, s := range metrics.stages {
		if s == "message:verifier" {
			foundVerifier = true
		}
	}
	if !foundVerifier {
		t.Fatalf("expected a message:verifier stage observation, got %v", metrics.stages)
	}
}

func TestHandleActionRecordsDecisionMetric(t *testing.T) {
	m, _, metrics := newTestMediatorWithMetrics(`{}`, `{"threat_level":0}`, `{"decision":false,"reason":"missing auth"}`, `{"decision":false,"reason":"confirmed"}`)
	if err := m.AddActionPolicy(context.Background(), []predicate.Rule{{Name: "needs_auth", Logic: "authenticated"}}); err != nil {
		t.Fatalf("AddActionPolicy: %v", err)
	}

	if _, _, err := m.HandleAction(context.Background(), "delete_file", "deletes a file", `{}`, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(metrics.decisions) != 1 || metrics.decisions[0] != "action:deny" {
		t.Fatalf("expected one action:deny decision, got %v", metrics.decisions)
	}
	foundChief := false
	for _, s := range metrics.stages {
		if s == "action:chief_judge" {
			foundChief = true
		}
	}
	if !foundChief {
		t.Fatalf("expected an action:chief_judge stage observation after escalation, got %v", metrics.stages)
	}
}

func TestHandleMessageTreatsLiteralNoneAsEmpty(t *testing.T) {
	m, sink, metrics := newTestMediatorWithMetrics(`{}`, `{"threat_level":0}`, `{"decision":true,"reason":"ok"}`, `{"decision":true,"reason":"ok"}`)

	allowed, _, err := m.HandleMessage(context.Background(), "None", "alice", "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Fatalf("expected literal \"None\" message to short-circuit to allow")
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no decision record for a short-circuited message, got %+v", sink.records)
	}
	if len(metrics.decisions) != 1 || metrics.decisions[0] != "message:allow" {
		t.Fatalf("expected the short-circuit itself to still emit a decision metric, got %v", metrics.decisions)
	}
}
