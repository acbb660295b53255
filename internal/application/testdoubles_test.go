package application

import (
	"context"
	"errors"
	"sort"
	"time"

	"stockdata-pipeline/internal/domain"
)

var (
	ErrRepo = errors.New("repo error")
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type fakeSchema struct {
	calls int
	err   error
}

func (f *fakeSchema) EnsureSchema(context.Context) error {
	f.calls++
	return f.err
}

type key struct {
	symbol string
	ts     time.Time
}

// fakeQuoteRepo enforces the (symbol, timestamp) primary key like the table does.
type fakeQuoteRepo struct {
	store   map[key]domain.Quote
	inserts []domain.Quote
	err     error
}

func (f *fakeQuoteRepo) Insert(_ context.Context, q domain.Quote) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.store == nil {
		f.store = map[key]domain.Quote{}
	}
	f.inserts = append(f.inserts, q)
	k := key{q.Symbol, q.Timestamp}
	if _, ok := f.store[k]; ok {
		return false, nil
	}
	f.store[k] = q
	return true, nil
}

func (f *fakeQuoteRepo) ListRecent(_ context.Context, symbol string, limit int) ([]domain.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Quote
	for _, q := range f.store {
		if q.Symbol == symbol {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQuoteRepo) GetLast(ctx context.Context, symbol string) (domain.Quote, error) {
	out, err := f.ListRecent(ctx, symbol, 1)
	if err != nil {
		return domain.Quote{}, err
	}
	if len(out) == 0 {
		return domain.Quote{}, ErrNotFound
	}
	return out[0], nil
}

type cachingQuoteRepo struct {
	*fakeQuoteRepo
	invalidated []string
}

func (c *cachingQuoteRepo) Invalidate(symbol string) { c.invalidated = append(c.invalidated, symbol) }

type fakeProvider struct {
	out   domain.Quote
	err   error
	calls int
}

func (f *fakeProvider) Latest(context.Context, string) (domain.Quote, error) {
	f.calls++
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	return f.out, nil
}

type fakeRuns struct {
	runs     map[string]domain.IngestionRun
	startErr error
	n        int
}

func (f *fakeRuns) Start(_ context.Context, symbol string) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.runs == nil {
		f.runs = map[string]domain.IngestionRun{}
	}
	f.n++
	id := "run-" + string(rune('0'+f.n))
	f.runs[id] = domain.IngestionRun{ID: id, Symbol: symbol, Status: domain.IngestionRunStatusRunning}
	return id, nil
}

func (f *fakeRuns) Finish(_ context.Context, id string, st domain.IngestionRunStatus, errMsg *string) error {
	r, ok := f.runs[id]
	if !ok {
		return ErrNotFound
	}
	r.Status, r.Error = st, errMsg
	f.runs[id] = r
	return nil
}

func (f *fakeRuns) GetByID(_ context.Context, id string) (domain.IngestionRun, error) {
	r, ok := f.runs[id]
	if !ok {
		return domain.IngestionRun{}, ErrNotFound
	}
	return r, nil
}

type fakePublisher struct {
	published []domain.Quote
	err       error
}

func (f *fakePublisher) PublishQuote(_ context.Context, q domain.Quote) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, q)
	return nil
}

type fakeIdem struct{ seen map[string]bool }

func (f *fakeIdem) TryReserve(_ context.Context, k string) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
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

type fakeIngestor struct {
	res   RunResult
	err   error
	calls int
}

func (f *fakeIngestor) FetchAndStore(context.Context) (RunResult, error) {
	f.calls++
	return f.res, f.err
}
