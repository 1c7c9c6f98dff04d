package core

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/mohammad-safakhou/researchbot/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchbot/internal/retry"
	"github.com/mohammad-safakhou/researchbot/models"
	"github.com/mohammad-safakhou/researchbot/provider"
	"github.com/mohammad-safakhou/researchbot/tools/web_fetch"
	"github.com/mohammad-safakhou/researchbot/tools/web_search"
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrEmptyDeepQuery = errors.New("empty query after /dig-deeper")
	ErrUnknownCommand = errors.New("unknown command")
)

// Capabilities the pipeline depends on. Tests substitute deterministic fakes.
type (
	Generator   = provider.Generator
	Message     = provider.Message
	Searcher    = web_search.WebSearcher
	PageFetcher = web_fetch.PageFetcher
)

type DocumentEntry = models.DocumentEntry

// Documents persists answered turns into the session's research document
// and renders it. Preview returns models.ErrNoDocument for an empty session.
type Documents interface {
	Record(ctx context.Context, entry DocumentEntry) error
	Preview(ctx context.Context, sessionID string) (string, error)
}

// Mode selects the sub-query count and the source cap of a turn.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeDeep   Mode = "deep"
)

// Limits are the per-mode sizes.
type Limits struct {
	SubQueries int
	Sources    int
}

// LimitsFor returns the configured limits of mode, defaulting to 3/5 and 5/8.
func LimitsFor(cfg config.PipelineConfig, mode Mode) Limits {
	l := Limits{SubQueries: cfg.Normal.SubQueries, Sources: cfg.Normal.Sources}
	def := Limits{SubQueries: 3, Sources: 5}
	if mode == ModeDeep {
		l = Limits{SubQueries: cfg.Deep.SubQueries, Sources: cfg.Deep.Sources}
		def = Limits{SubQueries: 5, Sources: 8}
	}
	if l.SubQueries <= 0 {
		l.SubQueries = def.SubQueries
	}
	if l.Sources <= 0 {
		l.Sources = def.Sources
	}
	return l
}

// Option configures a pipeline component.
type Option func(*options)

type options struct {
	logger    *log.Logger
	sleep     retry.SleepFunc
	telemetry *telemetry.Telemetry
	rand      *rand.Rand
	now       func() time.Time
}

func buildOptions(prefix string, opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(log.Writer(), prefix, log.LstdFlags)
	}
	if o.rand == nil {
		o.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// WithLogger sets the component logger.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithSleep replaces the pause used between retries and polite delays.
func WithSleep(s retry.SleepFunc) Option { return func(o *options) { o.sleep = s } }

// WithTelemetry attaches metrics and tracing.
func WithTelemetry(t *telemetry.Telemetry) Option { return func(o *options) { o.telemetry = t } }

// WithRand fixes the randomness source of polite delays.
func WithRand(r *rand.Rand) Option { return func(o *options) { o.rand = r } }

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Quiet discards all component logging.
func Quiet() Option { return WithLogger(log.New(io.Discard, "", 0)) }

func (o options) policy(p retry.Policy) retry.Policy {
	if o.sleep != nil {
		p = p.WithSleep(o.sleep)
	}
	return p
}

func (o options) pause(ctx context.Context, d time.Duration) {
	if o.sleep != nil {
		_ = o.sleep(ctx, d)
		return
	}
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
