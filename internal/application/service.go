package application

import (
	"context"
	"fmt"

	"stockdata-pipeline/internal/domain"
)

// Ingestor runs one fetch-and-store cycle.
type Ingestor interface {
	FetchAndStore(ctx context.Context) (RunResult, error)
}

// cacheInvalidator is implemented by caching QuoteReaders.
type cacheInvalidator interface {
	Invalidate(symbol string)
}

type QuoteService struct {
	quotes   QuoteReader
	runs     RunRecorder
	ingestor Ingestor
	idem     IdempotencyStore
}

func NewQuoteService(quotes QuoteReader, runs RunRecorder, ingestor Ingestor, idem IdempotencyStore) *QuoteService {
	if runs == nil {
		runs = NoopRunRecorder{}
	}
	if idem == nil {
		idem = NoopIdempotency{}
	}
	return &QuoteService{quotes: quotes, runs: runs, ingestor: ingestor, idem: idem}
}

func (s *QuoteService) GetLastQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol, err := checkSymbol(symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	return s.quotes.GetLast(ctx, symbol)
}

func (s *QuoteService) ListQuotes(ctx context.Context, symbol string, limit int) ([]domain.Quote, error) {
	symbol, err := checkSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrBadRequest)
	}
	return s.quotes.ListRecent(ctx, symbol, limit)
}

// TriggerIngestion runs the ingestor once. A non-empty idempotency key that was
// already used yields ErrConflict without running anything. The key is released
// again when the run fails.
func (s *QuoteService) TriggerIngestion(ctx context.Context, idem *string) (RunResult, error) {
	var key string
	if idem != nil && *idem != "" {
		key = "ingest:" + *idem
		ok, err := s.idem.TryReserve(ctx, key)
		if err != nil {
			return RunResult{}, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !ok {
			return RunResult{}, ErrConflict
		}
	}
	res, err := s.ingestor.FetchAndStore(ctx)
	if err != nil {
		if key != "" {
			_ = s.idem.Release(context.WithoutCancel(ctx), key)
		}
		return res, err
	}
	if res.Inserted {
		if inv, ok := s.quotes.(cacheInvalidator); ok {
			inv.Invalidate(res.Quote.Symbol)
		}
	}
	return res, nil
}

func (s *QuoteService) GetIngestionRun(ctx context.Context, id string) (domain.IngestionRun, error) {
	return s.runs.GetByID(ctx, id)
}

func checkSymbol(symbol string) (string, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if !domain.ValidateSymbol(symbol) {
		return "", fmt.Errorf("%w: %w", ErrBadRequest, domain.ErrInvalidSymbol)
	}
	return symbol, nil
}
