package domain

import "time"

type IngestionRunStatus string

const (
	IngestionRunStatusRunning   IngestionRunStatus = "running"
	IngestionRunStatusSucceeded IngestionRunStatus = "succeeded"
	IngestionRunStatusFailed    IngestionRunStatus = "failed"
)

// IngestionRun records the outcome of one fetch-and-store attempt.
type IngestionRun struct {
	ID         string
	Symbol     string
	Status     IngestionRunStatus
	Error      *string
	StartedAt  time.Time
	FinishedAt *time.Time
}
