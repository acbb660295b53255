package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/config"
	infraconfig "stockdata-pipeline/internal/infrastructure/config"
	"stockdata-pipeline/internal/infrastructure/cache"
	"stockdata-pipeline/internal/infrastructure/httpx"
	"stockdata-pipeline/internal/infrastructure/kafka"
	"stockdata-pipeline/internal/infrastructure/pg"
	"stockdata-pipeline/internal/infrastructure/provider"
	redisstore "stockdata-pipeline/internal/infrastructure/redis"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Fixed values served by PROVIDER=fake.
var (
	fakePrice  = decimal.RequireFromString("100.00")
	fakeVolume = int64(1000)
)

func noop() {}

// ProvideDB opens the pool. The schema is not touched here.
func ProvideDB(ctx context.Context, log *zap.Logger, cfg config.Config) (*pg.DB, func(), error) {
	db, err := pg.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, noop, fmt.Errorf("connect postgres: %w", err)
	}
	cleanup := func() {
		log.Info("closing pg")
		db.Close()
	}
	return db, cleanup, nil
}

func ProvideQuoteProvider(cfg config.Config, log *zap.Logger) (application.QuoteProvider, error) {
	switch cfg.Provider {
	case "alphavantage":
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = infraconfig.DefaultRequestTimeout
		}
		return &provider.AlphaVantageProvider{
			BaseURL: cfg.StockAPIBase,
			APIKey:  cfg.StockAPIKey,
			Client:  httpx.New(timeout),
			Log:     log.Named("alphavantage"),
		}, nil
	case "fake":
		return provider.NewFake(fakePrice, fakeVolume), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// ProvidePublisher returns a Kafka publisher when brokers are configured.
func ProvidePublisher(cfg config.Config, log *zap.Logger) (application.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		return application.NoopPublisher{}, noop
	}
	p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log.Named("kafka"))
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn("closing kafka writer", zap.Error(err))
		}
	}
}

func ProvideIdempotency(ctx context.Context, cfg config.Config) (application.IdempotencyStore, func(), error) {
	switch cfg.IdempotencyBackend {
	case "redis":
		client, err := redisstore.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return redisstore.New(client, cfg.IdempotencyTTL), func() { _ = client.Close() }, nil
	case "", "none":
		return application.NoopIdempotency{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported IDEMPOTENCY_BACKEND=%q", cfg.IdempotencyBackend)
	}
}

func ProvideQuoteReader(db *pg.DB, cfg config.Config) (application.QuoteReader, func(), error) {
	repo := pg.NewQuoteRepo(db)
	if cfg.CacheTTL <= 0 {
		return repo, noop, nil
	}
	c, err := cache.New(repo, infraconfig.DefaultCacheMaxCost, cfg.CacheTTL)
	if err != nil {
		return nil, noop, fmt.Errorf("quote cache: %w", err)
	}
	return c, c.Close, nil
}

func ProvidePipeline(cfg config.Config, log *zap.Logger, db *pg.DB, qp application.QuoteProvider, events application.EventPublisher) *application.Pipeline {
	return application.NewPipeline(cfg.Symbol,
		pg.NewSchema(db),
		pg.NewQuoteRepo(db),
		qp,
		application.WithRunRecorder(pg.NewRunRepo(db)),
		application.WithEventPublisher(events),
		application.WithLogger(log),
	)
}
