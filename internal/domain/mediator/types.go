package mediator

import (
	"context"

	"github.com/quadguard/quadguard/internal/port/outbound"
)

// noopSink discards decision records; used when no sink is configured.
type noopSink struct{}

func (noopSink) Record(ctx context.Context, rec outbound.DecisionRecord) {}

// noopMetrics discards metrics; used when no recorder is configured.
type noopMetrics struct{}

func (noopMetrics) RecordDecision(kind string, allowed bool)         {}
func (noopMetrics) ObserveStage(kind, stage string, seconds float64) {}
func (noopMetrics) SetThreatLevel(sender string, level int)          {}
