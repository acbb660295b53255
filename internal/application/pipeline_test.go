package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stockdata-pipeline/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type pipelineDeps struct {
	schema   *fakeSchema
	quotes   *fakeQuoteRepo
	provider *fakeProvider
	runs     *fakeRuns
	events   *fakePublisher
	logs     *observer.ObservedLogs
}

func newTestPipeline(t *testing.T, provider *fakeProvider) (*Pipeline, pipelineDeps) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	d := pipelineDeps{
		schema:   &fakeSchema{},
		quotes:   &fakeQuoteRepo{},
		provider: provider,
		runs:     &fakeRuns{},
		events:   &fakePublisher{},
		logs:     logs,
	}
	p := NewPipeline("AAPL", d.schema, d.quotes, d.provider,
		WithClock(fakeClock{t: now}),
		WithRunRecorder(d.runs),
		WithEventPublisher(d.events),
		WithLogger(zap.New(core)),
	)
	return p, d
}

func quoteOf(price string, volume int64) domain.Quote {
	return domain.Quote{Symbol: "AAPL", Price: decimal.RequireFromString(price), Volume: volume}
}

func TestCreateTable(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{})

	require.NoError(t, p.CreateTable(context.Background()))
	require.NoError(t, p.CreateTable(context.Background()))
	require.Equal(t, 2, d.schema.calls)
}

func TestCreateTable_FailureIsLoggedAndReturned(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{})
	d.schema.err = errors.New("connection refused")

	err := p.CreateTable(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, 1, d.logs.FilterMessage("pipeline.create_table_failed").FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestFetchAndStore_CoercesAndInserts(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{out: quoteOf("150.25", 1000000)})

	res, err := p.FetchAndStore(context.Background())
	require.NoError(t, err)
	require.True(t, res.Inserted)
	require.Equal(t, "run-1", res.RunID)

	require.Len(t, d.quotes.inserts, 1)
	got := d.quotes.inserts[0]
	require.Equal(t, "AAPL", got.Symbol)
	require.True(t, decimal.RequireFromString("150.25").Equal(got.Price))
	require.Equal(t, int64(1000000), got.Volume)
	require.Equal(t, now, got.Timestamp)

	require.Len(t, d.events.published, 1)
	require.Equal(t, domain.IngestionRunStatusSucceeded, d.runs.runs["run-1"].Status)
}

func TestFetchAndStore_DuplicateIsIgnored(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{out: quoteOf("150.25", 1000000)})

	first, err := p.FetchAndStore(context.Background())
	require.NoError(t, err)
	require.True(t, first.Inserted)

	// same clock value, so the (symbol, timestamp) key collides
	second, err := p.FetchAndStore(context.Background())
	require.NoError(t, err)
	require.False(t, second.Inserted)

	require.Len(t, d.quotes.store, 1)
	require.Len(t, d.events.published, 1)
	require.Equal(t, 1, d.logs.FilterMessage("pipeline.insert_duplicate_ignored").Len())
}

func TestFetchAndStore_ProviderErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		err   error
		msg   string
		level zapcore.Level
	}{
		{"missing credential", domain.ErrMissingCredential, "pipeline.missing_credential", zapcore.ErrorLevel},
		{"timeout", fmt.Errorf("%w: %w", domain.ErrUpstream, context.DeadlineExceeded), "pipeline.fetch_failed", zapcore.ErrorLevel},
		{"bad status", fmt.Errorf("%w: status 503", domain.ErrUpstream), "pipeline.fetch_failed", zapcore.ErrorLevel},
		{"not json", fmt.Errorf("%w: invalid character", domain.ErrMalformedPayload), "pipeline.parse_failed", zapcore.ErrorLevel},
		{"no global quote", domain.ErrQuoteNotFound, "pipeline.quote_not_found", zapcore.ErrorLevel},
		{"no volume", fmt.Errorf("%w: 06. volume", domain.ErrMissingField), "pipeline.missing_field", zapcore.WarnLevel},
		{"bad number", &domain.CoercionError{Price: "abc", Volume: "10", Err: errors.New("bad")}, "pipeline.convert_failed", zapcore.ErrorLevel},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, d := newTestPipeline(t, &fakeProvider{err: tc.err})

			res, err := p.FetchAndStore(context.Background())
			require.ErrorIs(t, err, tc.err)
			require.False(t, res.Inserted)
			require.Empty(t, d.quotes.inserts)
			require.Empty(t, d.events.published)

			entries := d.logs.FilterMessage(tc.msg).AllUntimed()
			require.Len(t, entries, 1)
			require.Equal(t, tc.level, entries[0].Level)

			run := d.runs.runs[res.RunID]
			require.Equal(t, domain.IngestionRunStatusFailed, run.Status)
			require.NotNil(t, run.Error)
		})
	}
}

func TestFetchAndStore_ConvertFailureLogsRawValues(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{err: &domain.CoercionError{Price: "n/a", Volume: "1,000", Err: errors.New("bad")}})

	_, err := p.FetchAndStore(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidField)

	entry := d.logs.FilterMessage("pipeline.convert_failed").AllUntimed()[0]
	fields := entry.ContextMap()
	require.Equal(t, "n/a", fields["raw_price"])
	require.Equal(t, "1,000", fields["raw_volume"])
}

func TestFetchAndStore_StoreError(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{out: quoteOf("1.00", 1)})
	d.quotes.err = ErrRepo

	_, err := p.FetchAndStore(context.Background())
	require.ErrorIs(t, err, ErrRepo)
	require.Equal(t, 1, d.logs.FilterMessage("pipeline.insert_failed").Len())
}

func TestFetchAndStore_RecorderFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{out: quoteOf("1.00", 1)})
	d.runs.startErr = errors.New("runs table missing")

	res, err := p.FetchAndStore(context.Background())
	require.NoError(t, err)
	require.True(t, res.Inserted)
	require.Empty(t, res.RunID)
	require.Equal(t, 1, d.logs.FilterMessage("pipeline.run_record_failed").FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestFetchAndStore_PublishFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{out: quoteOf("1.00", 1)})
	d.events.err = errors.New("broker down")

	res, err := p.FetchAndStore(context.Background())
	require.NoError(t, err)
	require.True(t, res.Inserted)
	require.Equal(t, 1, d.logs.FilterMessage("pipeline.publish_failed").Len())
}

func TestFetchAndStore_InvalidSymbolSkipsProvider(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{}
	p := NewPipeline("not a ticker", &fakeSchema{}, &fakeQuoteRepo{}, provider)

	_, err := p.FetchAndStore(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidSymbol)
	require.Zero(t, provider.calls)
}

func TestInsert_RoundsPriceAndRejectsNegativeVolume(t *testing.T) {
	t.Parallel()
	p, d := newTestPipeline(t, &fakeProvider{})

	q, inserted, err := p.Insert(context.Background(), "aapl", decimal.RequireFromString("99.999"), 5)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, "100.00", q.Price.StringFixed(2))

	_, _, err = p.Insert(context.Background(), "AAPL", decimal.NewFromInt(1), -1)
	require.ErrorIs(t, err, domain.ErrInvalidField)
	require.Len(t, d.quotes.inserts, 1)
}

func TestRetryable(t *testing.T) {
	require.False(t, Retryable(nil))
	require.False(t, Retryable(domain.ErrMissingCredential))
	require.False(t, Retryable(fmt.Errorf("x: %w", domain.ErrInvalidSymbol)))
	require.True(t, Retryable(domain.ErrUpstream))
	require.True(t, Retryable(ErrRepo))
}
