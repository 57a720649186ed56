package services

import (
	"strings"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
)

// Aggregator folds raw line items into one HealthUnit per facility
type Aggregator struct {
	classifyLocations bool
}

// NewAggregator creates an aggregator. With classifyLocations off every unit gets an
// empty location type.
func NewAggregator(classifyLocations bool) *Aggregator {
	return &Aggregator{classifyLocations: classifyLocations}
}

// Aggregate groups records by facility code. Descriptive fields come from the first
// record seen for a facility, quantities are summed per medicine code and the first
// description seen for a medicine wins. Facilities and medicines keep first-appearance
// order. Aggregate does no I/O.
func (a *Aggregator) Aggregate(records []entities.RawStockRecord, stockDate entities.Date) []*entities.HealthUnit {
	units := make([]*entities.HealthUnit, 0)
	byCode := make(map[string]*entities.HealthUnit)
	medicineIndex := make(map[string]map[string]int)

	for _, r := range records {
		unit, ok := byCode[r.CnesCode]
		if !ok {
			unit = a.newUnit(r, stockDate)
			byCode[r.CnesCode] = unit
			medicineIndex[r.CnesCode] = make(map[string]int)
			units = append(units, unit)
		}

		idx, seen := medicineIndex[r.CnesCode][r.CatmatCode]
		if !seen {
			medicineIndex[r.CnesCode][r.CatmatCode] = len(unit.Medicines)
			unit.Medicines = append(unit.Medicines, entities.MedicineStock{
				CatmatCode:  r.CatmatCode,
				Description: r.MedicineDescription,
			})
			idx = len(unit.Medicines) - 1
		}
		unit.Medicines[idx].TotalQuantity += r.Quantity
	}

	return units
}

func (a *Aggregator) newUnit(r entities.RawStockRecord, stockDate entities.Date) *entities.HealthUnit {
	unit := &entities.HealthUnit{
		CnesCode: r.CnesCode,
		Name:     r.FacilityName,
		Address: entities.Address{
			Street:       r.Street,
			Number:       r.Number,
			Neighborhood: r.Neighborhood,
			Cep:          r.Cep,
		},
		Location: entities.Location{
			Longitude: valueOrZero(r.Longitude),
			Latitude:  valueOrZero(r.Latitude),
		},
		City:            r.City,
		State:           r.State,
		Phone:           optional(r.Phone),
		Email:           optional(r.Email),
		LastStockUpdate: stockDate,
		Medicines:       []entities.MedicineStock{},
	}
	if a.classifyLocations {
		unit.LocationType = entities.ClassifyLocation(r.Street, r.Neighborhood)
	}
	return unit
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
