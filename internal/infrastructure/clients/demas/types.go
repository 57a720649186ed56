package demas

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// StockResponse is the envelope returned by the stock endpoint
type StockResponse struct {
	Items []StockItem `json:"parametros"`
}

// StockItem is one medicine stock line item of one facility
type StockItem struct {
	RegionCode         FlexString  `json:"codigo_uf"`
	State              string      `json:"uf"`
	MunicipalityCode   FlexString  `json:"codigo_municipio"`
	Municipality       string      `json:"municipio"`
	CnesCode           FlexString  `json:"codigo_cnes"`
	FacilityName       string      `json:"nome_fantasia"`
	StockDate          string      `json:"data_posicao_estoque"`
	CatmatCode         FlexString  `json:"codigo_catmat"`
	ProductDescription string      `json:"descricao_produto"`
	Quantity           FlexInt     `json:"quantidade_estoque"`
	Street             *string     `json:"logradouro"`
	AddressNumber      *FlexString `json:"numero_endereco"`
	Neighborhood       *string     `json:"bairro"`
	Phone              *string     `json:"telefone"`
	Email              *string     `json:"email"`
	Cep                *FlexString `json:"cep"`
	Latitude           *FlexFloat  `json:"latitude"`
	Longitude          *FlexFloat  `json:"longitude"`
}

// FlexString accepts a JSON string or number
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// FlexInt accepts a JSON number or a numeric string. Fractional values are
// rounded to the nearest integer, halves away from zero.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = FlexInt(int64(math.Round(v)))
	return nil
}

// FlexFloat accepts a JSON number or a numeric string, with either decimal separator
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.Replace(string(s), ",", ".", 1), 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q", s)
	}
	*f = FlexFloat(v)
	return nil
}

// Float returns the value, or nil for a missing or blank coordinate
func (f *FlexFloat) Float() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// StringValue dereferences an optional string, trimming spaces
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// FlexValue dereferences an optional FlexString
func FlexValue(s *FlexString) string {
	if s == nil {
		return ""
	}
	return string(*s)
}
