// Package telemetry records pipeline metrics and spans.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "researchbot",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"stage"})

	retries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "researchbot",
		Name:      "retries_total",
		Help:      "Retried provider calls per stage.",
	}, []string{"stage"})

	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "researchbot",
		Name:      "fallbacks_total",
		Help:      "Deterministic fallbacks taken per stage.",
	}, []string{"stage"})

	shortcuts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "researchbot",
		Name:      "shortcuts_total",
		Help:      "Short-circuited turns per tag.",
	}, []string{"tag"})

	turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "researchbot",
		Name:      "turns_total",
		Help:      "Handled turns per outcome.",
	}, []string{"outcome"})
)

// Stage names used as metric labels and span names.
const (
	StageResolve    = "resolve"
	StageSearch     = "search"
	StageFetch      = "fetch"
	StageFilter     = "filter"
	StageSynthesize = "synthesize"
)

// Telemetry is safe for concurrent use. The zero value uses the global tracer.
type Telemetry struct {
	tracer trace.Tracer
}

func New(tracer trace.Tracer) *Telemetry {
	return &Telemetry{tracer: tracer}
}

func (t *Telemetry) tr() trace.Tracer {
	if t == nil || t.tracer == nil {
		return otel.Tracer("researchbot/internal/agent")
	}
	return t.tracer
}

// Tracer returns the tracer spans are started on.
func (t *Telemetry) Tracer() trace.Tracer { return t.tr() }

// StartStage opens a span for stage and returns a func that closes it and
// records the stage duration. Pass a non-nil error to mark the span failed.
func (t *Telemetry) StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := t.tr().Start(ctx, "agent."+stage, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (t *Telemetry) Retry(stage string)    { retries.WithLabelValues(stage).Inc() }
func (t *Telemetry) Fallback(stage string) { fallbacks.WithLabelValues(stage).Inc() }
func (t *Telemetry) Shortcut(tag string)   { shortcuts.WithLabelValues(tag).Inc() }
func (t *Telemetry) Turn(outcome string)   { turns.WithLabelValues(outcome).Inc() }
