package application

import (
	"context"

	"stockdata-pipeline/internal/domain"
)

// NoopRunRecorder records nothing; GetByID always reports ErrNotFound.
type NoopRunRecorder struct{}

func (NoopRunRecorder) Start(context.Context, string) (string, error) { return "", nil }

func (NoopRunRecorder) Finish(context.Context, string, domain.IngestionRunStatus, *string) error {
	return nil
}

func (NoopRunRecorder) GetByID(context.Context, string) (domain.IngestionRun, error) {
	return domain.IngestionRun{}, ErrNotFound
}

type NoopPublisher struct{}

func (NoopPublisher) PublishQuote(context.Context, domain.Quote) error { return nil }
