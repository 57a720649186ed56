package entities

import "strings"

// LocationType classifies a facility by where it sits in the municipality
type LocationType string

const (
	LocationTypeAll      LocationType = "ALL"
	LocationTypeDistrict LocationType = "DISTRICT"
	LocationTypeRural    LocationType = "RURAL"
	LocationTypeUrban    LocationType = "URBAN"
)

// MedicineAvailability filters medicine totals by whether any stock exists
type MedicineAvailability string

const (
	AvailabilityAll         MedicineAvailability = "ALL"
	AvailabilityAvailable   MedicineAvailability = "AVAILABLE"
	AvailabilityUnavailable MedicineAvailability = "UNAVAILABLE"
)

// DrugClassification filters medicines by cost tier, derived from the CATMAT code prefix
type DrugClassification string

const (
	ClassificationAll       DrugClassification = "ALL"
	ClassificationBasic     DrugClassification = "BASIC"
	ClassificationExpensive DrugClassification = "EXPENSIVE"
)

var locationTypes = map[string]LocationType{
	"ALL":      LocationTypeAll,
	"DISTRICT": LocationTypeDistrict,
	"RURAL":    LocationTypeRural,
	"URBAN":    LocationTypeUrban,
}

var availabilities = map[string]MedicineAvailability{
	"ALL":         AvailabilityAll,
	"AVAILABLE":   AvailabilityAvailable,
	"UNAVAILABLE": AvailabilityUnavailable,
}

var classifications = map[string]DrugClassification{
	"ALL":       ClassificationAll,
	"BASIC":     ClassificationBasic,
	"EXPENSIVE": ClassificationExpensive,
}

// ParseLocationType returns the location type for value, case-insensitively
func ParseLocationType(value string) (LocationType, bool) {
	t, ok := locationTypes[strings.ToUpper(strings.TrimSpace(value))]
	return t, ok
}

// ParseMedicineAvailability returns the availability filter for value, case-insensitively
func ParseMedicineAvailability(value string) (MedicineAvailability, bool) {
	a, ok := availabilities[strings.ToUpper(strings.TrimSpace(value))]
	return a, ok
}

// ParseDrugClassification returns the classification filter for value, case-insensitively
func ParseDrugClassification(value string) (DrugClassification, bool) {
	c, ok := classifications[strings.ToUpper(strings.TrimSpace(value))]
	return c, ok
}

const (
	districtMarker  = "DISTRITO"
	ruralZoneMarker = "ZONA RURAL"
)

// ClassifyLocation applies the first matching rule: DISTRICT when the street or the
// neighborhood mentions a district, RURAL when the neighborhood is a rural zone, else URBAN
func ClassifyLocation(street, neighborhood string) LocationType {
	street = strings.ToUpper(street)
	neighborhood = strings.ToUpper(neighborhood)

	switch {
	case strings.Contains(street, districtMarker) || strings.Contains(neighborhood, districtMarker):
		return LocationTypeDistrict
	case strings.Contains(neighborhood, ruralZoneMarker):
		return LocationTypeRural
	default:
		return LocationTypeUrban
	}
}
