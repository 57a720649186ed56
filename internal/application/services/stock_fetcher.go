package services

import (
	"context"
	"fmt"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

// DefaultFetchPageSize is the page size requested from the upstream
const DefaultFetchPageSize = 50

// StockFetcher pulls every record published for one day
type StockFetcher struct {
	source   providers.StockSource
	pageSize int
}

// NewStockFetcher creates a fetcher requesting pages of pageSize records
func NewStockFetcher(source providers.StockSource, pageSize int) *StockFetcher {
	if pageSize <= 0 {
		pageSize = DefaultFetchPageSize
	}
	return &StockFetcher{source: source, pageSize: pageSize}
}

// FetchAll requests consecutive pages until one comes back empty. A short page does
// not end the scan. Any page error aborts the fetch so a truncated snapshot is never
// loaded.
func (f *StockFetcher) FetchAll(ctx context.Context, date entities.Date) ([]entities.RawStockRecord, error) {
	logger := observability.LoggerFromContext(ctx)

	var all []entities.RawStockRecord
	offset := 0
	for {
		page, err := f.source.FetchPage(ctx, date, f.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += f.pageSize
		logger.Debug().Int("offset", offset).Int("total", len(all)).Msg("fetched stock page")
	}

	logger.Info().Str("date", date.String()).Int("records", len(all)).Msg("fetched stock snapshot")
	return all, nil
}
