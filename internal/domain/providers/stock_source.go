package providers

import (
	"context"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
)

// StockSource reads medicine stock line items published for one calendar day
type StockSource interface {
	// FetchPage returns up to limit records of date starting at offset. An empty
	// slice means there is nothing left to read.
	FetchPage(ctx context.Context, date entities.Date, limit, offset int) ([]entities.RawStockRecord, error)
}
