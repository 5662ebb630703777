package telemetry

import (
	"context"
	"testing"
)

func TestSetupAndShutdown(t *testing.T) {
	shutdown, err := Setup(context.Background())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracerAndMeterNonNil(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("expected non-nil tracer")
	}
	if Meter() == nil {
		t.Fatal("expected non-nil meter")
	}
}
