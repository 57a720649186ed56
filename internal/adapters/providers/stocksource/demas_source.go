package stocksource

import (
	"context"
	"strings"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/clients/demas"
)

// StockClient is the part of the DEMAS client the source needs
type StockClient interface {
	FetchStock(ctx context.Context, q demas.StockQuery) (*demas.StockResponse, error)
}

// DemasSource implements StockSource over the DEMAS open-data API
type DemasSource struct {
	client StockClient
}

// NewDemasSource creates a stock source backed by client
func NewDemasSource(client StockClient) providers.StockSource {
	return &DemasSource{client: client}
}

// FetchPage returns one page of the stock published for date
func (s *DemasSource) FetchPage(ctx context.Context, date entities.Date, limit, offset int) ([]entities.RawStockRecord, error) {
	resp, err := s.client.FetchStock(ctx, demas.StockQuery{
		Date:   date.String(),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	records := make([]entities.RawStockRecord, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, toRawRecord(item))
	}
	return records, nil
}

func toRawRecord(item demas.StockItem) entities.RawStockRecord {
	return entities.RawStockRecord{
		CnesCode:            string(item.CnesCode),
		FacilityName:        strings.TrimSpace(item.FacilityName),
		Street:              demas.StringValue(item.Street),
		Number:              demas.FlexValue(item.AddressNumber),
		Neighborhood:        demas.StringValue(item.Neighborhood),
		Cep:                 demas.FlexValue(item.Cep),
		Phone:               demas.StringValue(item.Phone),
		Email:               demas.StringValue(item.Email),
		Latitude:            item.Latitude.Float(),
		Longitude:           item.Longitude.Float(),
		City:                strings.TrimSpace(item.Municipality),
		State:               strings.TrimSpace(item.State),
		RegionCode:          string(item.RegionCode),
		MunicipalityCode:    string(item.MunicipalityCode),
		StockDate:           item.StockDate,
		CatmatCode:          string(item.CatmatCode),
		MedicineDescription: strings.TrimSpace(item.ProductDescription),
		Quantity:            int64(item.Quantity),
	}
}
