package outbound

// MetricsRecorder receives the mediator's per-decision observability
// signals. Implementations must not block or fail the decision path; a
// recording failure is the recorder's own concern to log.
type MetricsRecorder interface {
	// RecordDecision counts one handle_message/handle_action outcome.
	RecordDecision(kind string, allowed bool)
	// ObserveStage records how long one pipeline stage took for a decision
	// of the given kind (predicate_watcher, threat_watcher, verifier,
	// judge, chief_judge).
	ObserveStage(kind, stage string, seconds float64)
	// SetThreatLevel reports a sender's current threat level.
	SetThreatLevel(sender string, level int)
}
