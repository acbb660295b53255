package application

import "context"

// Task names, in the order a scheduled tick runs them.
const (
	TaskCreateTable   = "create_stock_table"
	TaskFetchAndStore = "fetch_and_store_data"
)

// Worker represents a background processor.
// Implementations must run until the context is canceled.
type Worker interface {
	Start(ctx context.Context)
}
