package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCountersIncrement(t *testing.T) {
	var tel *Telemetry
	before := value(t, fallbacks.WithLabelValues(StageFilter))
	tel.Fallback(StageFilter)
	tel.Fallback(StageFilter)
	if got := value(t, fallbacks.WithLabelValues(StageFilter)) - before; got != 2 {
		t.Fatalf("expected 2 fallbacks recorded, got %v", got)
	}

	before = value(t, shortcuts.WithLabelValues("too_short"))
	tel.Shortcut("too_short")
	if got := value(t, shortcuts.WithLabelValues("too_short")) - before; got != 1 {
		t.Fatalf("expected 1 shortcut recorded, got %v", got)
	}
}

func TestStartStageWithNilTelemetry(t *testing.T) {
	var tel *Telemetry
	ctx, done := tel.StartStage(context.Background(), StageSearch)
	if ctx == nil {
		t.Fatalf("expected context")
	}
	done(errors.New("boom"))
	_, done = New(nil).StartStage(context.Background(), StageResolve)
	done(nil)
}
