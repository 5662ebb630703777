// Package mediator implements the guard's central orchestration loop (the
// original system calls this component "Guard"): it threads every incoming
// message and outgoing action through predicate/threat updates, policy
// verification, and — only when verification fails — LLM adjudication.
package mediator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quadguard/quadguard/internal/domain/judge"
	"github.com/quadguard/quadguard/internal/domain/predicate"
	"github.com/quadguard/quadguard/internal/domain/verifier"
	"github.com/quadguard/quadguard/internal/domain/watcher"
	"github.com/quadguard/quadguard/internal/port/outbound"
	"github.com/quadguard/quadguard/internal/telemetry"
)

// Config holds the tunables a Mediator is constructed with.
type Config struct {
	// MessageBufferSize bounds the conversation-wide and per-sender message
	// history (default 5).
	MessageBufferSize int
	// DefaultPredicateLookupK is how many nearest predicates the vector
	// index returns per non-initial message (default 5).
	DefaultPredicateLookupK int
	// ThreatEscalationThreshold is the strict threat level above which a
	// message is checked against the message policy even without an
	// explicit force-check (default 2, per spec: level must be >2).
	ThreatEscalationThreshold int
}

func (c Config) withDefaults() Config {
	if c.MessageBufferSize <= 0 {
		c.MessageBufferSize = 5
	}
	if c.DefaultPredicateLookupK <= 0 {
		c.DefaultPredicateLookupK = 5
	}
	if c.ThreatEscalationThreshold <= 0 {
		c.ThreatEscalationThreshold = 2
	}
	return c
}

// Mediator is the guard's orchestrator. A zero Mediator is not usable; use
// New.
type Mediator struct {
	cfg Config

	store   *predicate.Store
	index   outbound.PredicateIndex
	predW   *watcher.PredicateWatcher
	threatW *watcher.ThreatWatcher
	judges  *judge.Chain
	sink    outbound.DecisionSink
	metrics outbound.MetricsRecorder
	logger  *slog.Logger

	mu                sync.Mutex
	conversation      *messageBuffer
	initialMessage    string
	hasInitialMessage bool
	senderHistory     map[string]*messageBuffer
	threatLevels      map[string]int
	cache             *verdictCache
	toolDescriptions  map[string]string

	enabled           bool
	forceMessageCheck bool
}

// New constructs a Mediator. sink and metrics may be nil, in which case
// decision records and metrics are discarded.
func New(cfg Config, store *predicate.Store, index outbound.PredicateIndex, predW *watcher.PredicateWatcher, threatW *watcher.ThreatWatcher, judges *judge.Chain, sink outbound.DecisionSink, metrics outbound.MetricsRecorder, logger *slog.Logger) *Mediator {
	if sink == nil {
		sink = noopSink{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Mediator{
		cfg:              cfg,
		store:            store,
		index:            index,
		predW:            predW,
		threatW:          threatW,
		judges:           judges,
		sink:             sink,
		metrics:          metrics,
		logger:           logger,
		conversation:     newMessageBuffer(cfg.MessageBufferSize),
		senderHistory:    make(map[string]*messageBuffer),
		threatLevels:     make(map[string]int),
		cache:            newVerdictCache(),
		toolDescriptions: make(map[string]string),
		enabled:          true,
	}
}

// Enable turns policy enforcement on (the default).
func (m *Mediator) Enable() {
	m.mu.Lock()
	m.enabled = true
	m.mu.Unlock()
}

// Disable turns policy enforcement off: HandleMessage/HandleAction become
// unconditional allows. Used for maintenance windows and while the guard's
// own policy-refinement traffic must not be checked against itself.
func (m *Mediator) Disable() {
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
}

// SetForceMessageCheck controls whether every message is checked against
// the message policy regardless of threat level.
func (m *Mediator) SetForceMessageCheck(force bool) {
	m.mu.Lock()
	m.forceMessageCheck = force
	m.mu.Unlock()
}

// RegisterTool records a tool's description for use in action adjudication
// prompts when the caller does not supply one directly.
func (m *Mediator) RegisterTool(name, description string) {
	m.mu.Lock()
	m.toolDescriptions[name] = description
	m.mu.Unlock()
}

// AddActionPolicy installs rules into the action policy set and indexes any
// newly created predicates.
func (m *Mediator) AddActionPolicy(ctx context.Context, rules []predicate.Rule) error {
	if err := m.store.AddActionPolicy(rules); err != nil {
		return err
	}
	return m.indexNewPredicates(ctx)
}

// AddMessagePolicy installs rules into the message policy set and indexes
// any newly created predicates.
func (m *Mediator) AddMessagePolicy(ctx context.Context, rules []predicate.Rule) error {
	if err := m.store.AddMessagePolicy(rules); err != nil {
		return err
	}
	return m.indexNewPredicates(ctx)
}

// DeactivatePolicies stashes the current action policy aside and clears it,
// so the guard's own in-progress policy-refinement traffic is not checked
// against a policy it is still editing.
func (m *Mediator) DeactivatePolicies() {
	m.store.DeactivatePolicies()
}

// ActivatePolicy installs the named subset of the most recently stashed
// action policy, replacing whatever action policy is currently active.
func (m *Mediator) ActivatePolicy(names []string) {
	m.store.ActivatePolicy(names)
}

func (m *Mediator) indexNewPredicates(ctx context.Context) error {
	if m.index == nil {
		return nil
	}
	for name, p := range m.store.AllPredicates() {
		text := fmt.Sprintf("%s: %s (%s)", name, p.Description, strings.Join(p.Keywords, ", "))
		if err := m.index.Upsert(ctx, name, text); err != nil {
			m.logger.Warn("failed to index predicate", "predicate", name, "error", err)
		}
	}
	return nil
}

// HandleMessage runs one message through the pipeline: predicate refresh,
// per-sender threat update, and — only if the sender's or recipient's
// threat level exceeds the configured threshold (or a force-check is
// active) — message-policy verification and, on violation, judge
// adjudication. It returns (allowed, reason).
func (m *Mediator) HandleMessage(ctx context.Context, message, sender, recipient string) (bool, string, error) {
	return m.handleMessage(ctx, message, sender, recipient, false)
}

// HandleMessageFullScope behaves like HandleMessage but always evaluates
// every known predicate rather than narrowing to the vector index's
// k-nearest neighbors. Used for synthesized observations (tool-call
// summaries, non-text payloads) that don't carry enough of the original
// wording for a narrow similarity match to be reliable.
func (m *Mediator) HandleMessageFullScope(ctx context.Context, message, sender, recipient string) (bool, string, error) {
	return m.handleMessage(ctx, message, sender, recipient, true)
}

func (m *Mediator) handleMessage(ctx context.Context, message, sender, recipient string, fullScope bool) (allowed bool, reason string, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "mediator.handle_message",
		trace.WithAttributes(attribute.String("sender", sender), attribute.String("recipient", recipient)))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Bool("allowed", allowed))
		span.End()
		m.metrics.RecordDecision("message", allowed)
	}()

	m.mu.Lock()
	enabled := m.enabled
	m.mu.Unlock()
	if !enabled {
		return true, "", nil
	}
	if message == "" || message == "None" {
		return true, "", nil
	}

	m.mu.Lock()
	m.conversation.add(message)
	isInitial := !m.hasInitialMessage
	if isInitial {
		m.initialMessage = message
		m.hasInitialMessage = true
	}
	initial := m.initialMessage
	conv := m.conversation.snapshot()
	m.mu.Unlock()

	observation := formatObservation(initial, conv)

	predStart := time.Now()
	if err := m.refreshPredicates(ctx, observation, message, isInitial || fullScope); err != nil {
		m.logger.Warn("predicate refresh failed", "error", err)
	}
	m.metrics.ObserveStage("message", "predicate_watcher", time.Since(predStart).Seconds())

	var senderLevel, recipientLevel int
	if sender != "" {
		threatStart := time.Now()
		senderLevel = m.updateThreat(ctx, sender, message)
		if recipient != "" {
			recipientLevel = m.bumpThreat(recipient, senderLevel)
		}
		m.metrics.ObserveStage("message", "threat_watcher", time.Since(threatStart).Seconds())
		m.metrics.SetThreatLevel(sender, senderLevel)
		if recipient != "" {
			m.metrics.SetThreatLevel(recipient, recipientLevel)
		}
	}

	m.mu.Lock()
	force := m.forceMessageCheck
	messagePolicy, hasMessagePolicy := m.store.MessagePolicy()
	m.mu.Unlock()

	if !force && (sender == "" || recipient == "" || !hasMessagePolicy) {
		return true, "", nil
	}
	if !force && senderLevel <= m.cfg.ThreatEscalationThreshold && recipientLevel <= m.cfg.ThreatEscalationThreshold {
		return true, "", nil
	}

	valuation := m.store.Valuation()
	key := cacheKey("message", valuation, messagePolicy)
	verifyStart := time.Now()
	result, cacheHit := m.cachedVerify(key, messagePolicy, valuation)
	m.metrics.ObserveStage("message", "verifier", time.Since(verifyStart).Seconds())

	if result.Decision {
		m.sink.Record(ctx, outbound.DecisionRecord{Kind: "message", Sender: sender, Recipient: recipient, Decision: true, CacheHit: cacheHit})
		return true, "", nil
	}

	reasons := strings.Join(result.Violated, "; ")
	judgeCtx, judgeSpan := telemetry.Tracer().Start(ctx, "mediator.judge")
	judgeStart := time.Now()
	verdict, judgeErr := m.judges.JudgeMessage(judgeCtx, observation, reasons)
	judgeDuration := time.Since(judgeStart).Seconds()
	judgeSpan.End()
	m.metrics.ObserveStage("message", "judge", judgeDuration)
	if verdict.Escalated {
		m.metrics.ObserveStage("message", "chief_judge", judgeDuration)
	}
	if judgeErr != nil {
		return false, "", judgeErr
	}
	m.sink.Record(ctx, outbound.DecisionRecord{Kind: "message", Sender: sender, Recipient: recipient, Decision: verdict.Decision, Reason: verdict.Reason, Violated: result.Violated, CacheHit: cacheHit, Escalated: verdict.Escalated})
	return verdict.Decision, verdict.Reason, nil
}

// HandleAction runs one pending tool call through the pipeline:
// action-policy verification against the current valuation and, only on
// violation, judge adjudication using the caller's current threat level.
func (m *Mediator) HandleAction(ctx context.Context, toolName, toolDescription, arguments, sender string) (allowed bool, reason string, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "mediator.handle_action",
		trace.WithAttributes(attribute.String("sender", sender), attribute.String("tool_name", toolName)))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Bool("allowed", allowed))
		span.End()
		m.metrics.RecordDecision("action", allowed)
	}()

	m.mu.Lock()
	enabled := m.enabled
	if toolDescription == "" {
		toolDescription = m.toolDescriptions[toolName]
	}
	initial := m.initialMessage
	conv := m.conversation.snapshot()
	m.mu.Unlock()
	if !enabled {
		return true, "", nil
	}

	observation := formatObservation(initial, conv)

	actionPolicy := m.store.ActionPolicy()
	valuation := m.store.Valuation()
	key := cacheKey("action", valuation, actionPolicy)
	verifyStart := time.Now()
	result, cacheHit := m.cachedVerify(key, actionPolicy, valuation)
	m.metrics.ObserveStage("action", "verifier", time.Since(verifyStart).Seconds())

	if result.Decision {
		m.sink.Record(ctx, outbound.DecisionRecord{Kind: "action", Sender: sender, ToolName: toolName, Decision: true, CacheHit: cacheHit})
		return true, "", nil
	}

	threatLevel := 0
	if sender != "" {
		m.mu.Lock()
		threatLevel = m.threatLevels[sender]
		m.mu.Unlock()
		m.metrics.SetThreatLevel(sender, threatLevel)
	}

	reasons := strings.Join(result.Violated, "; ")
	judgeCtx, judgeSpan := telemetry.Tracer().Start(ctx, "mediator.judge")
	judgeStart := time.Now()
	verdict, err := m.judges.JudgeAction(judgeCtx, observation, judge.ToolCall{Name: toolName, Description: toolDescription, Arguments: arguments}, reasons, threatLevel)
	judgeDuration := time.Since(judgeStart).Seconds()
	judgeSpan.End()
	m.metrics.ObserveStage("action", "judge", judgeDuration)
	if verdict.Escalated {
		m.metrics.ObserveStage("action", "chief_judge", judgeDuration)
	}
	if err != nil {
		return false, "", err
	}
	m.sink.Record(ctx, outbound.DecisionRecord{Kind: "action", Sender: sender, ToolName: toolName, Decision: verdict.Decision, Reason: verdict.Reason, Violated: result.Violated, CacheHit: cacheHit, Escalated: verdict.Escalated})
	return verdict.Decision, verdict.Reason, nil
}

func (m *Mediator) cachedVerify(key string, policies predicate.PolicySet, valuation map[string]bool) (verifier.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.cache.get(key); ok {
		return r, true
	}
	r := verifier.Verify(policies, valuation)
	m.cache.put(key, r)
	return r, false
}

// refreshPredicates asks the predicate watcher to update values. On the
// initial message (or whenever the index is unavailable) every known
// predicate is considered; otherwise only the k nearest predicates to the
// message are, narrowing the oracle's context the way the original's
// chromadb query did.
func (m *Mediator) refreshPredicates(ctx context.Context, observation, message string, isInitial bool) error {
	all := m.store.AllPredicates()
	scope := all
	if !isInitial && m.index != nil && len(all) > 0 {
		query := message
		if len(query) > 8000 {
			query = query[:8000]
		}
		matches, err := m.index.Query(ctx, query, m.cfg.DefaultPredicateLookupK)
		if err != nil {
			return fmt.Errorf("predicate index query: %w", err)
		}
		scope = make(map[string]predicate.Predicate, len(matches))
		for _, match := range matches {
			if p, ok := all[match.ID]; ok {
				scope[match.ID] = p
			}
		}
	}

	snapshots := make(map[string]watcher.PredicateSnapshot, len(scope))
	for name, p := range scope {
		snapshots[name] = watcher.PredicateSnapshot{Name: name, Description: p.Description, Keywords: p.Keywords, Value: p.Value}
	}

	updates, err := m.predW.Update(ctx, observation, snapshots)
	if err != nil {
		return err
	}
	for name, value := range updates {
		if _, ok := all[name]; !ok {
			continue
		}
		m.store.SetValue(name, value)
	}
	return nil
}

func (m *Mediator) updateThreat(ctx context.Context, sender, message string) int {
	m.mu.Lock()
	hist, ok := m.senderHistory[sender]
	if !ok {
		hist = newMessageBuffer(m.cfg.MessageBufferSize)
		m.senderHistory[sender] = hist
		m.threatLevels[sender] = 0
	}
	hist.add(message)
	observation := strings.Join(hist.snapshot(), "\n")
	current := m.threatLevels[sender]
	m.mu.Unlock()

	updated := m.threatW.Update(ctx, observation, current)

	m.mu.Lock()
	m.threatLevels[sender] = updated
	m.mu.Unlock()
	return updated
}

// bumpThreat raises recipient's threat level to at least senderLevel
// (threat levels are monotone non-decreasing per conversation: there is no
// decay path for a recipient exposed to a high-threat sender).
func (m *Mediator) bumpThreat(recipient string, senderLevel int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	level := m.threatLevels[recipient]
	if senderLevel > level {
		level = senderLevel
	}
	m.threatLevels[recipient] = level
	return level
}

func formatObservation(initial string, conversation []string) string {
	return fmt.Sprintf("Initial User Request: %s; Current Conversation: %s", initial, strings.Join(conversation, " | "))
}
