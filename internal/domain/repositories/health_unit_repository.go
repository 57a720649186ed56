package repositories

import (
	"context"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
)

// HealthUnitRepository defines the storage operations over facilities and their
// embedded medicine stock
type HealthUnitRepository interface {
	// UpsertAll inserts or wholly replaces facilities keyed by CNES code. Facilities
	// absent from units are left untouched.
	UpsertAll(ctx context.Context, units []*entities.HealthUnit) error

	// UpdateLocation rewrites only the coordinates of one facility
	UpdateLocation(ctx context.Context, cnesCode string, location entities.Location) error

	// ExistsByCode reports whether a facility with the given code is stored
	ExistsByCode(ctx context.Context, cnesCode string) (bool, error)

	// LatestStockUpdate returns the newest last-stock-update date, or nil for an empty store
	LatestStockUpdate(ctx context.Context) (*entities.Date, error)

	// List retrieves facilities, without their medicines, matching the filter
	List(ctx context.Context, filter HealthUnitFilter) ([]*entities.HealthUnit, error)
	CountList(ctx context.Context, filter HealthUnitFilter) (int64, error)

	// FindWithMedicineInStock retrieves facilities holding at least one medicine whose
	// description matches the term with stock above zero. Each facility's medicines are
	// narrowed to exactly those entries.
	FindWithMedicineInStock(ctx context.Context, filter MedicineSearchFilter) ([]*entities.HealthUnit, error)
	CountWithMedicineInStock(ctx context.Context, filter MedicineSearchFilter) (int64, error)

	// ListMedicines pages through one facility's medicines ordered by description
	ListMedicines(ctx context.Context, cnesCode string, limit, offset int) ([]entities.MedicineStock, error)
	CountMedicines(ctx context.Context, cnesCode string) (int64, error)

	// AggregateMedicineStock sums each medicine's quantity across all facilities
	AggregateMedicineStock(ctx context.Context, filter MedicineStockFilter) ([]entities.MedicineTotalStock, error)
	CountMedicineStock(ctx context.Context, filter MedicineStockFilter) (int64, error)
}

// HealthUnitFilter narrows the facility listing. An empty SearchTerm matches everything.
type HealthUnitFilter struct {
	SearchTerm   string
	LocationType entities.LocationType
	Limit        int
	Offset       int
}

// MedicineSearchFilter selects facilities by medicine description
type MedicineSearchFilter struct {
	SearchTerm string
	Limit      int
	Offset     int
}

// MedicineStockFilter narrows the network-wide medicine totals
type MedicineStockFilter struct {
	SearchTerm     string
	Availability   entities.MedicineAvailability
	Classification entities.DrugClassification
	Limit          int
	Offset         int
}
