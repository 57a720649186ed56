package entities

import (
	"time"
)

// HealthUnit is a public-health facility together with the medicine stock it reported
// on the most recent publication date
type HealthUnit struct {
	CnesCode        string          `json:"cnesCode"`
	Name            string          `json:"name"`
	Address         Address         `json:"address"`
	Location        Location        `json:"location"`
	City            string          `json:"city"`
	State           string          `json:"state"`
	Phone           *string         `json:"phone"`
	Email           *string         `json:"email"`
	LocationType    LocationType    `json:"locationType,omitempty"`
	LastStockUpdate Date            `json:"lastStockUpdate"`
	Medicines       []MedicineStock `json:"medicines,omitempty"`
}

// Address represents the postal address of a facility
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	Cep          string `json:"cep"`
}

// Location is a geographic point. A zero value means the coordinate is unknown.
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// MedicineStock is the summed quantity of one medicine held by one facility
type MedicineStock struct {
	CatmatCode    string `json:"catmatCode"`
	Description   string `json:"description"`
	TotalQuantity int64  `json:"totalQuantity"`
}

// MedicineTotalStock is the network-wide total of one medicine
type MedicineTotalStock struct {
	CatmatCode  string `json:"catmatCode"`
	Description string `json:"description"`
	TotalStock  int64  `json:"totalStock"`
}

// RawStockRecord is one line item published by the upstream data source
type RawStockRecord struct {
	CnesCode            string
	FacilityName        string
	Street              string
	Number              string
	Neighborhood        string
	Cep                 string
	Phone               string
	Email               string
	Latitude            *float64
	Longitude           *float64
	City                string
	State               string
	RegionCode          string
	MunicipalityCode    string
	StockDate           string
	CatmatCode          string
	MedicineDescription string
	Quantity            int64
}

// Date is a calendar day serialized as YYYY-MM-DD
type Date struct {
	time.Time
}

// DateLayout is the wire format of Date
const DateLayout = "2006-01-02"

// NewDate truncates t to its calendar day, keeping the year, month and day as seen in t's zone
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// String returns the date as YYYY-MM-DD
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// After reports whether d is a later calendar day than other
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// AddDays returns the date n days later (n may be negative)
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &time.ParseError{Layout: DateLayout, Value: s}
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
