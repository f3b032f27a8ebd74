package telemetry_test

import (
	"context"
	"testing"

	"github.com/snailos/snail/internal/telemetry"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := telemetry.Setup(context.Background(), "test-service", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestTracerAvailableWithoutSetup(t *testing.T) {
	_, span := telemetry.Tracer().Start(context.Background(), "probe")
	defer span.End()

	if span == nil {
		t.Fatal("expected a span from the default provider")
	}
}
