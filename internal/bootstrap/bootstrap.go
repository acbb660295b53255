package bootstrap

import (
	"context"
	"fmt"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/config"
	httpserver "stockdata-pipeline/internal/infrastructure/http"
	"stockdata-pipeline/internal/infrastructure/pg"
	"stockdata-pipeline/internal/infrastructure/worker"

	"go.uber.org/zap"
)

// cleanups runs registered closers in reverse order.
type cleanups []func()

func (c *cleanups) add(fn func()) { *c = append(*c, fn) }

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// InitPipeline wires the ingestion pipeline against Postgres.
func InitPipeline(ctx context.Context, cfg config.Config, log *zap.Logger) (*application.Pipeline, *pg.DB, func(), error) {
	var cs cleanups
	db, closeDB, err := ProvideDB(ctx, log, cfg)
	if err != nil {
		return nil, nil, noop, err
	}
	cs.add(closeDB)

	qp, err := ProvideQuoteProvider(cfg, log)
	if err != nil {
		cs.run()
		return nil, nil, noop, err
	}
	events, closeEvents := ProvidePublisher(cfg, log)
	cs.add(closeEvents)

	return ProvidePipeline(cfg, log, db, qp, events), db, cs.run, nil
}

// InitAPI migrates the schema and builds the HTTP server.
func InitAPI(ctx context.Context, cfg config.Config, log *zap.Logger) (*httpserver.Server, func(), error) {
	var cs cleanups
	p, db, closePipeline, err := InitPipeline(ctx, cfg, log)
	if err != nil {
		return nil, noop, err
	}
	cs.add(closePipeline)

	if err := p.CreateTable(ctx); err != nil {
		cs.run()
		return nil, noop, err
	}

	reader, closeReader, err := ProvideQuoteReader(db, cfg)
	if err != nil {
		cs.run()
		return nil, noop, err
	}
	cs.add(closeReader)

	idem, closeIdem, err := ProvideIdempotency(ctx, cfg)
	if err != nil {
		cs.run()
		return nil, noop, fmt.Errorf("idempotency store: %w", err)
	}
	cs.add(closeIdem)

	svc := application.NewQuoteService(reader, pg.NewRunRepo(db), p, idem)
	srv := httpserver.NewServer(svc)
	srv.SetReadyCheck(db.Ping)
	return srv, cs.run, nil
}

// InitWorker builds the in-process hourly scheduler.
func InitWorker(ctx context.Context, cfg config.Config, log *zap.Logger) (application.Worker, func(), error) {
	p, _, cleanup, err := InitPipeline(ctx, cfg, log)
	if err != nil {
		return nil, noop, err
	}
	return &worker.Scheduler{
		Tasks:      p,
		Interval:   cfg.ScheduleInterval,
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Log:        log.Named("scheduler"),
	}, cleanup, nil
}
