package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/researchbot/config"
	"github.com/mohammad-safakhou/researchbot/internal/agent/core"
	"github.com/mohammad-safakhou/researchbot/internal/agent/telemetry"
	"github.com/mohammad-safakhou/researchbot/internal/document"
	"github.com/mohammad-safakhou/researchbot/internal/runtime"
	"github.com/mohammad-safakhou/researchbot/internal/store"
	"github.com/mohammad-safakhou/researchbot/internal/worker"
	"github.com/mohammad-safakhou/researchbot/provider"
	"github.com/mohammad-safakhou/researchbot/session"
	"github.com/mohammad-safakhou/researchbot/session/inmemory"
	redis_session "github.com/mohammad-safakhou/researchbot/session/redis"
	"github.com/mohammad-safakhou/researchbot/tools/web_fetch"
	"github.com/mohammad-safakhou/researchbot/tools/web_search"
)

// app holds the wired service. close releases everything opened by buildApp.
type app struct {
	cfg      *config.Config
	pipeline *core.Pipeline
	docs     *document.Exporter
	janitor  *worker.Janitor
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	tele, tracer, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, version)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return tele.Shutdown(context.Background()) })

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	searcher, err := web_search.NewWebSearcher(cfg.Search)
	if err != nil {
		return nil, err
	}
	fetcher, err := web_fetch.NewPageFetcher(web_fetch.FetcherType(cfg.Fetch.Mode))
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Session.Backend == string(session.RedisStore) {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}
	var sessions session.Store
	if rdb != nil {
		sessions = redis_session.NewWithClient(rdb, cfg.Session.TTL)
	} else {
		sessions = inmemory.NewInMemorySessionStore(cfg.Session.TTL)
	}

	repo, err := documentRepository(ctx, a, cfg)
	if err != nil {
		return nil, err
	}
	a.docs = document.NewExporter(repo)

	pipeline, err := core.NewPipeline(core.Deps{
		Config:    cfg,
		LLM:       llm,
		Search:    searcher,
		Fetch:     fetcher,
		Sessions:  sessions,
		Documents: a.docs,
	}, core.WithTelemetry(telemetry.New(tracer)))
	if err != nil {
		return nil, err
	}
	a.pipeline = pipeline

	var jopts []worker.Option
	if rdb != nil {
		jopts = append(jopts, worker.WithLocker(rdb))
	}
	if sweeper, canSweep := sessions.(worker.SessionSweeper); canSweep {
		jopts = append(jopts, worker.WithSessions(sweeper))
	}
	a.janitor, err = worker.NewJanitor(a.docs, cfg.Documents, jopts...)
	if err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

func documentRepository(ctx context.Context, a *app, cfg *config.Config) (document.Repository, error) {
	switch cfg.Documents.Backend {
	case "postgres":
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return nil, err
		}
		st, err := store.NewWithDSN(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	case "file", "":
		return document.NewFileRepository(cfg.Documents.Folder)
	}
	return nil, errors.New("unknown documents backend " + cfg.Documents.Backend)
}
