package pg

import (
	"context"
	"fmt"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"
	"stockdata-pipeline/internal/infrastructure/logx"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type QuoteRepo struct{ db *DB }

var (
	_ application.QuoteStore  = (*QuoteRepo)(nil)
	_ application.QuoteReader = (*QuoteRepo)(nil)
)

func NewQuoteRepo(db *DB) *QuoteRepo { return &QuoteRepo{db: db} }

// Insert writes q unless a row with the same (symbol, timestamp) exists.
func (r *QuoteRepo) Insert(ctx context.Context, q domain.Quote) (bool, error) {
	const ins = `
        INSERT INTO stock_data (symbol, price, volume, "timestamp")
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (symbol, "timestamp") DO NOTHING`
	log := logx.L().With(
		zap.String("repo", "quote"),
		zap.String("operation", "Insert"),
		zap.String("symbol", q.Symbol),
		zap.Time("timestamp", q.Timestamp),
	)
	log.Debug("sql.exec_start", zap.String("sql", ins))
	tag, err := r.db.Pool.Exec(ctx, ins, q.Symbol, q.Price.StringFixed(domain.PriceScale), q.Volume, q.Timestamp)
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return false, err
	}
	log.Info("sql.exec_success", zap.Int64("rows_affected", tag.RowsAffected()))
	return tag.RowsAffected() == 1, nil
}

func (r *QuoteRepo) GetLast(ctx context.Context, symbol string) (domain.Quote, error) {
	out, err := r.ListRecent(ctx, symbol, 1)
	if err != nil {
		return domain.Quote{}, err
	}
	if len(out) == 0 {
		return domain.Quote{}, application.ErrNotFound
	}
	return out[0], nil
}

// ListRecent returns up to limit quotes for symbol, newest first.
func (r *QuoteRepo) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.Quote, error) {
	const q = `
        SELECT symbol, price::text, volume, "timestamp"
        FROM stock_data
        WHERE symbol = $1
        ORDER BY "timestamp" DESC
        LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Quote
	for rows.Next() {
		var (
			quote domain.Quote
			price string
		)
		if err := rows.Scan(&quote.Symbol, &price, &quote.Volume, &quote.Timestamp); err != nil {
			return nil, err
		}
		quote.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("scan price %q: %w", price, err)
		}
		quote.Timestamp = quote.Timestamp.UTC()
		out = append(out, quote)
	}
	return out, rows.Err()
}
