package httpserver

import (
	"context"
	"sort"
	"time"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"

	"github.com/shopspring/decimal"
)

var _ application.QuoteReader = (*fakeQuoteRepo)(nil)
var _ application.RunRecorder = (*fakeRuns)(nil)
var _ application.Ingestor = (*fakeIngestor)(nil)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeQuoteRepo struct {
	store map[string][]domain.Quote
}

func (f *fakeQuoteRepo) GetLast(_ context.Context, symbol string) (domain.Quote, error) {
	qs := f.store[symbol]
	if len(qs) == 0 {
		return domain.Quote{}, application.ErrNotFound
	}
	return qs[0], nil
}

func (f *fakeQuoteRepo) ListRecent(_ context.Context, symbol string, limit int) ([]domain.Quote, error) {
	qs := f.store[symbol]
	if len(qs) > limit {
		qs = qs[:limit]
	}
	return qs, nil
}

type fakeRuns struct {
	runs map[string]domain.IngestionRun
}

func (f *fakeRuns) Start(_ context.Context, symbol string) (string, error) {
	id := "run-1"
	f.runs[id] = domain.IngestionRun{ID: id, Symbol: symbol, Status: domain.IngestionRunStatusRunning, StartedAt: t0}
	return id, nil
}

func (f *fakeRuns) Finish(_ context.Context, id string, st domain.IngestionRunStatus, errMsg *string) error {
	r, ok := f.runs[id]
	if !ok {
		return application.ErrNotFound
	}
	r.Status = st
	r.Error = errMsg
	fin := t0.Add(time.Second)
	r.FinishedAt = &fin
	f.runs[id] = r
	return nil
}

func (f *fakeRuns) GetByID(_ context.Context, id string) (domain.IngestionRun, error) {
	r, ok := f.runs[id]
	if !ok {
		return domain.IngestionRun{}, application.ErrNotFound
	}
	return r, nil
}

type fakeIngestor struct {
	res application.RunResult
	err error
}

func (f *fakeIngestor) FetchAndStore(context.Context) (application.RunResult, error) {
	return f.res, f.err
}

type fakeIdem struct{ seen map[string]bool }

func (f *fakeIdem) TryReserve(_ context.Context, k string) (bool, error) {
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

func (f *fakeIdem) Release(_ context.Context, k string) error {
	delete(f.seen, k)
	return nil
}

func seedQuotes(prices ...string) map[string][]domain.Quote {
	var qs []domain.Quote
	for i, p := range prices {
		qs = append(qs, domain.NewQuote("AAPL", decimal.RequireFromString(p), int64(1000+i), t0.Add(time.Duration(i)*time.Hour)))
	}
	sort.Slice(qs, func(i, j int) bool { return qs[i].Timestamp.After(qs[j].Timestamp) })
	return map[string][]domain.Quote{"AAPL": qs}
}

func NewInMemoryService(ing *fakeIngestor) (*application.QuoteService, *fakeQuoteRepo, *fakeRuns) {
	qr := &fakeQuoteRepo{store: seedQuotes("150.25", "151.5", "152")}
	runs := &fakeRuns{runs: map[string]domain.IngestionRun{}}
	if ing == nil {
		ing = &fakeIngestor{}
	}
	return application.NewQuoteService(qr, runs, ing, &fakeIdem{seen: map[string]bool{}}), qr, runs
}
