package application

import (
	"context"
	"errors"
	"fmt"

	"stockdata-pipeline/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RunResult describes a completed fetch-and-store cycle.
type RunResult struct {
	RunID    string
	Quote    domain.Quote
	Inserted bool
}

// Pipeline ensures the quote table exists and ingests the latest quote of a
// single symbol. Every operation logs its failures and returns them.
type Pipeline struct {
	symbol   string
	schema   SchemaInitializer
	quotes   QuoteStore
	provider QuoteProvider
	runs     RunRecorder
	events   EventPublisher
	clock    Clock
	log      *zap.Logger
}

type PipelineOption func(*Pipeline)

func WithRunRecorder(r RunRecorder) PipelineOption { return func(p *Pipeline) { p.runs = r } }

func WithEventPublisher(e EventPublisher) PipelineOption { return func(p *Pipeline) { p.events = e } }

func WithClock(c Clock) PipelineOption { return func(p *Pipeline) { p.clock = c } }

func WithLogger(l *zap.Logger) PipelineOption { return func(p *Pipeline) { p.log = l } }

func NewPipeline(symbol string, schema SchemaInitializer, quotes QuoteStore, provider QuoteProvider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		symbol:   domain.NormalizeSymbol(symbol),
		schema:   schema,
		quotes:   quotes,
		provider: provider,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runs == nil {
		p.runs = NoopRunRecorder{}
	}
	if p.events == nil {
		p.events = NoopPublisher{}
	}
	if p.clock == nil {
		p.clock = realClock{}
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	return p
}

func (p *Pipeline) Symbol() string { return p.symbol }

// CreateTable idempotently ensures the quote table exists.
func (p *Pipeline) CreateTable(ctx context.Context) error {
	log := p.log.With(zap.String("task", TaskCreateTable))
	if err := p.schema.EnsureSchema(ctx); err != nil {
		log.Error("pipeline.create_table_failed", zap.Error(err))
		return fmt.Errorf("create table: %w", err)
	}
	log.Info("pipeline.create_table_done")
	return nil
}

// FetchAndStore fetches the latest quote for the configured symbol and inserts it.
// No retries happen here; callers decide whether to run it again.
func (p *Pipeline) FetchAndStore(ctx context.Context) (RunResult, error) {
	log := p.log.With(zap.String("task", TaskFetchAndStore), zap.String("symbol", p.symbol))
	log.Info("pipeline.fetch_started")

	runID := p.startRun(ctx, log)
	if runID != "" {
		log = log.With(zap.String("run_id", runID))
	}
	res, err := p.fetchAndStore(ctx, log)
	res.RunID = runID
	p.finishRun(ctx, log, runID, err)
	return res, err
}

func (p *Pipeline) fetchAndStore(ctx context.Context, log *zap.Logger) (RunResult, error) {
	if !domain.ValidateSymbol(p.symbol) {
		log.Error("pipeline.invalid_symbol")
		return RunResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidSymbol, p.symbol)
	}
	q, err := p.provider.Latest(ctx, p.symbol)
	if err != nil {
		logFetchError(log, err)
		return RunResult{}, err
	}
	log.Info("pipeline.fetch_succeeded")

	stored, inserted, err := p.Insert(ctx, p.symbol, q.Price, q.Volume)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Quote: stored, Inserted: inserted}, nil
}

// Insert stores one quote record stamped with the current time. A record that
// already exists for the same (symbol, timestamp) is left untouched and
// Insert reports false without an error.
func (p *Pipeline) Insert(ctx context.Context, symbol string, price decimal.Decimal, volume int64) (domain.Quote, bool, error) {
	q := domain.NewQuote(domain.NormalizeSymbol(symbol), price, volume, p.clock.Now())
	log := p.log.With(zap.String("symbol", q.Symbol), zap.Time("timestamp", q.Timestamp))

	if !domain.ValidateSymbol(q.Symbol) {
		log.Error("pipeline.invalid_symbol")
		return q, false, fmt.Errorf("%w: %q", domain.ErrInvalidSymbol, q.Symbol)
	}
	if volume < 0 {
		log.Error("pipeline.negative_volume", zap.Int64("volume", volume))
		return q, false, fmt.Errorf("%w: volume %d", domain.ErrInvalidField, volume)
	}

	inserted, err := p.quotes.Insert(ctx, q)
	if err != nil {
		log.Error("pipeline.insert_failed", zap.Error(err))
		return q, false, fmt.Errorf("insert quote: %w", err)
	}
	if !inserted {
		log.Info("pipeline.insert_duplicate_ignored")
		return q, false, nil
	}
	log.Info("pipeline.insert_succeeded",
		zap.String("price", q.Price.StringFixed(domain.PriceScale)),
		zap.Int64("volume", q.Volume),
	)
	if err := p.events.PublishQuote(ctx, q); err != nil {
		log.Warn("pipeline.publish_failed", zap.Error(err))
	}
	return q, true, nil
}

func logFetchError(log *zap.Logger, err error) {
	var ce *domain.CoercionError
	switch {
	case errors.Is(err, domain.ErrMissingCredential):
		log.Error("pipeline.missing_credential", zap.Error(err))
	case errors.As(err, &ce):
		log.Error("pipeline.convert_failed",
			zap.String("raw_price", ce.Price),
			zap.String("raw_volume", ce.Volume),
			zap.Error(err),
		)
	case errors.Is(err, domain.ErrMissingField):
		log.Warn("pipeline.missing_field", zap.Error(err))
	case errors.Is(err, domain.ErrQuoteNotFound):
		log.Error("pipeline.quote_not_found", zap.Error(err))
	case errors.Is(err, domain.ErrMalformedPayload):
		log.Error("pipeline.parse_failed", zap.Error(err))
	default:
		log.Error("pipeline.fetch_failed", zap.Error(err))
	}
}

func (p *Pipeline) startRun(ctx context.Context, log *zap.Logger) string {
	id, err := p.runs.Start(ctx, p.symbol)
	if err != nil {
		log.Warn("pipeline.run_record_failed", zap.Error(err))
		return ""
	}
	return id
}

func (p *Pipeline) finishRun(ctx context.Context, log *zap.Logger, id string, runErr error) {
	if id == "" {
		return
	}
	status := domain.IngestionRunStatusSucceeded
	var msg *string
	if runErr != nil {
		status = domain.IngestionRunStatusFailed
		s := runErr.Error()
		msg = &s
	}
	// The outcome is recorded even when the run was aborted by ctx.
	if err := p.runs.Finish(context.WithoutCancel(ctx), id, status, msg); err != nil {
		log.Warn("pipeline.run_record_failed", zap.Error(err))
	}
}
