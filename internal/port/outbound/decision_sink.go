package outbound

import "context"

// DecisionRecord is the observational record of one guard verdict, written
// out of band for audit and metrics purposes. It is never read back by the
// evaluator: losing the decision log never changes a decision.
type DecisionRecord struct {
	Kind      string // "message" or "action"
	Sender    string
	Recipient string
	ToolName  string
	Decision  bool
	Reason    string
	Violated  []string
	CacheHit  bool
	Escalated bool
}

// DecisionSink persists DecisionRecords. Implementations must not block or
// fail the decision path; errors are the sink's own concern to log.
type DecisionSink interface {
	Record(ctx context.Context, rec DecisionRecord)
}
