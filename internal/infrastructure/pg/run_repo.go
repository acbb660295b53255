package pg

import (
	"context"
	"errors"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"
	"stockdata-pipeline/internal/infrastructure/logx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type RunRepo struct{ db *DB }

var _ application.RunRecorder = (*RunRepo)(nil)

func NewRunRepo(db *DB) *RunRepo { return &RunRepo{db: db} }

func (r *RunRepo) Start(ctx context.Context, symbol string) (string, error) {
	id := uuid.NewString()
	const ins = `
        INSERT INTO ingestion_runs(id, symbol, status)
        VALUES ($1, $2, 'running')`
	log := logx.L().With(
		zap.String("repo", "ingestion_run"),
		zap.String("operation", "Start"),
		zap.String("id", id),
		zap.String("symbol", symbol),
	)
	log.Debug("sql.exec_start", zap.String("sql", ins))
	tag, err := r.db.Pool.Exec(ctx, ins, id, symbol)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return "", err
	}
	log.Info("sql.exec_success", zap.Int64("rows_affected", tag.RowsAffected()))
	return id, nil
}

func (r *RunRepo) Finish(ctx context.Context, id string, st domain.IngestionRunStatus, errMsg *string) error {
	s := statusToDB(st)
	const up = `
        UPDATE ingestion_runs
        SET status=$2,
            error=$3,
            finished_at = CASE WHEN $2 IN ('succeeded','failed') THEN NOW() ELSE finished_at END
        WHERE id=$1`
	log := logx.L().With(
		zap.String("repo", "ingestion_run"),
		zap.String("operation", "Finish"),
		zap.String("id", id),
		zap.String("status", s),
	)
	if errMsg != nil {
		log = log.With(zap.String("error", *errMsg))
	}
	log.Debug("sql.exec_start", zap.String("sql", up))
	tag, err := r.db.Pool.Exec(ctx, up, id, s, errMsg)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return err
	}
	if tag.RowsAffected() == 0 {
		log.Warn("sql.exec_no_rows")
		return application.ErrNotFound
	}
	log.Info("sql.exec_success", zap.Int64("rows_affected", tag.RowsAffected()))
	return nil
}

func (r *RunRepo) GetByID(ctx context.Context, id string) (domain.IngestionRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.IngestionRun{}, application.ErrNotFound
	}
	const q = `
        SELECT id::text, symbol, status, error, started_at, finished_at
        FROM ingestion_runs WHERE id=$1`
	log := logx.L().With(
		zap.String("repo", "ingestion_run"),
		zap.String("operation", "GetByID"),
		zap.String("id", id),
	)
	var out domain.IngestionRun
	var status string
	err := r.db.Pool.QueryRow(ctx, q, id).Scan(&out.ID, &out.Symbol, &status, &out.Error, &out.StartedAt, &out.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debug("sql.query_no_rows")
		return domain.IngestionRun{}, application.ErrNotFound
	}
	if err != nil {
		log.Error("sql.query_failed", zap.Error(err))
		return domain.IngestionRun{}, err
	}
	out.Status = statusFromDB(status)
	return out, nil
}

func statusToDB(st domain.IngestionRunStatus) string {
	switch st {
	case domain.IngestionRunStatusRunning:
		return "running"
	case domain.IngestionRunStatusSucceeded:
		return "succeeded"
	default:
		return "failed"
	}
}

func statusFromDB(s string) domain.IngestionRunStatus {
	switch s {
	case "running":
		return domain.IngestionRunStatusRunning
	case "succeeded":
		return domain.IngestionRunStatusSucceeded
	default:
		return domain.IngestionRunStatusFailed
	}
}
