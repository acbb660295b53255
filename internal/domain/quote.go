package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept for a price.
const PriceScale = 2

// Quote is one stored observation of a symbol's price and volume.
type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Volume    int64
	Timestamp time.Time
}

// NewQuote normalizes price to PriceScale and timestamp to UTC microseconds,
// the precision postgres keeps for TIMESTAMP columns.
func NewQuote(symbol string, price decimal.Decimal, volume int64, at time.Time) Quote {
	return Quote{
		Symbol:    symbol,
		Price:     price.Round(PriceScale),
		Volume:    volume,
		Timestamp: at.UTC().Truncate(time.Microsecond),
	}
}
