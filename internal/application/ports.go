package application

import (
	"context"

	"stockdata-pipeline/internal/domain"
)

type SchemaInitializer interface {
	EnsureSchema(ctx context.Context) error
}

// QuoteStore inserts quote records. Insert reports false when a record with
// the same (symbol, timestamp) already exists.
type QuoteStore interface {
	Insert(ctx context.Context, q domain.Quote) (bool, error)
}

type QuoteReader interface {
	GetLast(ctx context.Context, symbol string) (domain.Quote, error)
	ListRecent(ctx context.Context, symbol string, limit int) ([]domain.Quote, error)
}

// QuoteProvider returns the latest quote for symbol. The returned Timestamp is
// not used; records are stamped at insertion time.
type QuoteProvider interface {
	Latest(ctx context.Context, symbol string) (domain.Quote, error)
}

type RunRecorder interface {
	Start(ctx context.Context, symbol string) (string, error)
	Finish(ctx context.Context, id string, status domain.IngestionRunStatus, errMsg *string) error
	GetByID(ctx context.Context, id string) (domain.IngestionRun, error)
}

type EventPublisher interface {
	PublishQuote(ctx context.Context, q domain.Quote) error
}
