package cache

import (
	"context"
	"sync"
	"time"

	"stockdata-pipeline/internal/application"
	"stockdata-pipeline/internal/domain"

	"github.com/dgraph-io/ristretto"
)

// CachedQuotes keeps the latest quote per symbol in memory for ttl. History
// reads always go to the underlying reader.
//
// A per-symbol generation guards against a read that started before
// Invalidate filling the cache with the row it replaced.
type CachedQuotes struct {
	next application.QuoteReader
	c    *ristretto.Cache
	ttl  time.Duration

	mu   sync.Mutex
	gens map[string]uint64
}

var _ application.QuoteReader = (*CachedQuotes)(nil)

func New(next application.QuoteReader, maxCost int64, ttl time.Duration) (*CachedQuotes, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedQuotes{next: next, c: c, ttl: ttl, gens: map[string]uint64{}}, nil
}

func (c *CachedQuotes) GetLast(ctx context.Context, symbol string) (domain.Quote, error) {
	if v, ok := c.c.Get(symbol); ok {
		if q, ok := v.(domain.Quote); ok {
			return q, nil
		}
	}
	c.mu.Lock()
	gen := c.gens[symbol]
	c.mu.Unlock()

	q, err := c.next.GetLast(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}

	c.mu.Lock()
	if c.gens[symbol] == gen {
		c.c.SetWithTTL(symbol, q, 1, c.ttl)
	}
	c.mu.Unlock()
	return q, nil
}

func (c *CachedQuotes) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.Quote, error) {
	return c.next.ListRecent(ctx, symbol, limit)
}

// Invalidate drops the cached latest quote for symbol.
func (c *CachedQuotes) Invalidate(symbol string) {
	c.mu.Lock()
	c.gens[symbol]++
	c.c.Del(symbol)
	c.mu.Unlock()
}

// Wait blocks until buffered writes are applied.
func (c *CachedQuotes) Wait() { c.c.Wait() }

func (c *CachedQuotes) Close() { c.c.Close() }
