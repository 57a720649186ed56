package demas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
	"github.com/saudeaberta/medstock-api/pkg/retry"
)

const samplePage = `{
  "parametros": [
    {
      "codigo_uf": 23,
      "uf": "CE",
      "codigo_municipio": 230240,
      "municipio": "CAUCAIA",
      "codigo_cnes": "2481286",
      "nome_fantasia": "UBS CENTRO",
      "data_posicao_estoque": "2025-03-14",
      "codigo_catmat": "BR0267585",
      "descricao_produto": "DIPIRONA 500MG",
      "quantidade_estoque": 120,
      "logradouro": "RUA A",
      "numero_endereco": null,
      "bairro": "CENTRO",
      "telefone": null,
      "email": "ubs@example.org",
      "cep": 61600000,
      "latitude": -3.7361,
      "longitude": "-38.6531",
      "campo_novo": "ignored"
    }
  ]
}`

func testClient(url string) *Client {
	return NewClient(Config{
		BaseURL:          url,
		RegionCode:       "23",
		MunicipalityCode: "230240",
		Timeout:          2 * time.Second,
	}).WithRetryConfig(retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
	})
}

func TestFetchStock_DecodesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, StockPath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "23", q.Get("codigo_uf"))
		assert.Equal(t, "230240", q.Get("codigo_municipio"))
		assert.Equal(t, "2025-03-14", q.Get("data_posicao_estoque"))
		assert.Equal(t, "50", q.Get("limit"))
		assert.Equal(t, "100", q.Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).FetchStock(context.Background(), StockQuery{Date: "2025-03-14", Limit: 50, Offset: 100})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)

	item := resp.Items[0]
	assert.Equal(t, FlexString("23"), item.RegionCode)
	assert.Equal(t, FlexString("230240"), item.MunicipalityCode)
	assert.Equal(t, FlexString("2481286"), item.CnesCode)
	assert.Equal(t, FlexInt(120), item.Quantity)
	assert.Equal(t, "RUA A", StringValue(item.Street))
	assert.Equal(t, "", FlexValue(item.AddressNumber))
	assert.Nil(t, item.Phone)
	assert.Equal(t, "61600000", FlexValue(item.Cep))
	require.NotNil(t, item.Latitude.Float())
	assert.InDelta(t, -3.7361, *item.Latitude.Float(), 1e-9)
	assert.InDelta(t, -38.6531, *item.Longitude.Float(), 1e-9)
}

func TestFetchStock_OmitsZeroOffset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("offset"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"parametros":[]}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).FetchStock(context.Background(), StockQuery{Date: "2025-03-14", Limit: 1})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestFetchStock_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"parametros":[]}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchStock(context.Background(), StockQuery{Date: "2025-03-14", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchStock_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchStock(context.Background(), StockQuery{Date: "bad", Limit: 50})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchStock_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchStock(context.Background(), StockQuery{Date: "2025-03-14", Limit: 50})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFlexTypes(t *testing.T) {
	var v struct {
		Code  FlexString  `json:"code"`
		Qty   FlexInt     `json:"qty"`
		Lat   *FlexFloat  `json:"lat"`
		Lon   *FlexFloat  `json:"lon"`
		Empty *FlexString `json:"empty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"code":" 0012 ","qty":"7","lat":"-3,5","lon":null,"empty":null}`), &v))

	assert.Equal(t, FlexString("0012"), v.Code)
	assert.Equal(t, FlexInt(7), v.Qty)
	assert.InDelta(t, -3.5, *v.Lat.Float(), 1e-9)
	assert.Nil(t, v.Lon.Float())
	assert.Equal(t, "", FlexValue(v.Empty))

	var rounded struct {
		Qty FlexInt `json:"qty"`
	}
	for raw, want := range map[string]FlexInt{
		`"12.7"`: 13,
		`12.2`:   12,
		`"12.0"`: 12,
		`2.5`:    3,
	} {
		require.NoError(t, json.Unmarshal([]byte(`{"qty":`+raw+`}`), &rounded))
		assert.Equal(t, want, rounded.Qty, "quantity %s", raw)
	}

	var bad struct {
		Qty FlexInt `json:"qty"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"qty":"many"}`), &bad))
}
