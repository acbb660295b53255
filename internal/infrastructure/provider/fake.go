package provider

import (
	"context"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"

	"github.com/shopspring/decimal"
)

// Ensure Fake implements application.QuoteProvider.
var _ application.QuoteProvider = (*Fake)(nil)

type Fake struct {
	price  decimal.Decimal
	volume int64
}

func NewFake(price decimal.Decimal, volume int64) *Fake { return &Fake{price: price, volume: volume} }

func (f *Fake) Latest(_ context.Context, symbol string) (domain.Quote, error) {
	return domain.Quote{
		Symbol: symbol,
		Price:  f.price,
		Volume: f.volume,
	}, nil
}
