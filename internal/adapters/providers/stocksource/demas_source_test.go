package stocksource

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/clients/demas"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

var day = entities.NewDate(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))

type mockStockClient struct {
	mock.Mock
}

func (m *mockStockClient) FetchStock(ctx context.Context, q demas.StockQuery) (*demas.StockResponse, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*demas.StockResponse), args.Error(1)
}

const samplePage = `{"parametros":[{
	"codigo_uf": 23, "uf": "CE", "codigo_municipio": "230240", "municipio": "CAUCAIA",
	"codigo_cnes": 2372325, "nome_fantasia": " UBS CENTRO ", "data_posicao_estoque": "2024-03-10",
	"codigo_catmat": "BR0267357", "descricao_produto": "DIPIRONA 500MG", "quantidade_estoque": "120",
	"logradouro": "RUA A", "numero_endereco": 10, "bairro": "CENTRO", "telefone": null,
	"cep": 61600000, "latitude": "-3,7361", "longitude": null
}]}`

func TestDemasSource_MapsItems(t *testing.T) {
	var resp demas.StockResponse
	require.NoError(t, json.Unmarshal([]byte(samplePage), &resp))

	client := new(mockStockClient)
	client.On("FetchStock", mock.Anything, demas.StockQuery{Date: "2024-03-10", Limit: 50, Offset: 100}).
		Return(&resp, nil)

	records, err := NewDemasSource(client).FetchPage(context.Background(), day, 50, 100)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "2372325", r.CnesCode)
	assert.Equal(t, "UBS CENTRO", r.FacilityName)
	assert.Equal(t, "RUA A", r.Street)
	assert.Equal(t, "10", r.Number)
	assert.Equal(t, "CENTRO", r.Neighborhood)
	assert.Equal(t, "61600000", r.Cep)
	assert.Equal(t, "", r.Phone)
	assert.Equal(t, "CAUCAIA", r.City)
	assert.Equal(t, "CE", r.State)
	assert.Equal(t, "23", r.RegionCode)
	assert.Equal(t, "BR0267357", r.CatmatCode)
	assert.Equal(t, "DIPIRONA 500MG", r.MedicineDescription)
	assert.Equal(t, int64(120), r.Quantity)
	require.NotNil(t, r.Latitude)
	assert.Equal(t, -3.7361, *r.Latitude)
	assert.Nil(t, r.Longitude)
	client.AssertExpectations(t)
}

func TestDemasSource_EmptyPage(t *testing.T) {
	client := new(mockStockClient)
	client.On("FetchStock", mock.Anything, mock.Anything).Return(&demas.StockResponse{}, nil)

	records, err := NewDemasSource(client).FetchPage(context.Background(), day, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDemasSource_PropagatesErrors(t *testing.T) {
	client := new(mockStockClient)
	client.On("FetchStock", mock.Anything, mock.Anything).
		Return(nil, apperrors.NewExternalError("upstream down", nil))

	_, err := NewDemasSource(client).FetchPage(context.Background(), day, 50, 0)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}
