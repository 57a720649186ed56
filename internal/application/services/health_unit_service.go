package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/repositories"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

const (
	// MaxPageSize caps the size query parameter
	MaxPageSize = 100
)

// HealthUnitService answers the read-side queries over facilities and medicine stock
type HealthUnitService struct {
	repo repositories.HealthUnitRepository
}

// NewHealthUnitService creates a new health unit service
func NewHealthUnitService(repo repositories.HealthUnitRepository) *HealthUnitService {
	return &HealthUnitService{repo: repo}
}

// ListHealthUnits pages through facilities whose name or city matches searchTerm,
// optionally restricted to one location type. An unknown filter yields an empty page.
func (s *HealthUnitService) ListHealthUnits(ctx context.Context, page, size int, searchTerm, filter string) (entities.Page[*entities.HealthUnit], error) {
	if err := validatePaging(page, size); err != nil {
		return entities.Page[*entities.HealthUnit]{}, err
	}
	locationType, ok := parseOrDefault(filter, entities.LocationTypeAll, entities.ParseLocationType)
	if !ok {
		return entities.EmptyPage[*entities.HealthUnit](page, size), nil
	}

	f := repositories.HealthUnitFilter{
		SearchTerm:   searchTerm,
		LocationType: locationType,
		Limit:        size,
		Offset:       entities.Offset(page, size),
	}
	return fetchPage(ctx, page, size,
		func(ctx context.Context) ([]*entities.HealthUnit, error) { return s.repo.List(ctx, f) },
		func(ctx context.Context) (int64, error) { return s.repo.CountList(ctx, f) },
	)
}

// FindMedicinesByUnit pages through one facility's medicines. An unknown facility
// yields an empty page.
func (s *HealthUnitService) FindMedicinesByUnit(ctx context.Context, cnesCode string, page, size int) (entities.Page[entities.MedicineStock], error) {
	if err := validatePaging(page, size); err != nil {
		return entities.Page[entities.MedicineStock]{}, err
	}
	cnesCode = strings.TrimSpace(cnesCode)
	if cnesCode == "" {
		return entities.EmptyPage[entities.MedicineStock](page, size), nil
	}

	exists, err := s.repo.ExistsByCode(ctx, cnesCode)
	if err != nil {
		return entities.Page[entities.MedicineStock]{}, err
	}
	if !exists {
		return entities.EmptyPage[entities.MedicineStock](page, size), nil
	}

	limit, offset := size, entities.Offset(page, size)
	return fetchPage(ctx, page, size,
		func(ctx context.Context) ([]entities.MedicineStock, error) {
			return s.repo.ListMedicines(ctx, cnesCode, limit, offset)
		},
		func(ctx context.Context) (int64, error) { return s.repo.CountMedicines(ctx, cnesCode) },
	)
}

// FindUnitsByMedicine pages through facilities holding an in-stock medicine whose
// description matches searchTerm. Each facility lists only the matching medicines.
func (s *HealthUnitService) FindUnitsByMedicine(ctx context.Context, page, size int, searchTerm string) (entities.Page[*entities.HealthUnit], error) {
	if err := validatePaging(page, size); err != nil {
		return entities.Page[*entities.HealthUnit]{}, err
	}

	f := repositories.MedicineSearchFilter{
		SearchTerm: searchTerm,
		Limit:      size,
		Offset:     entities.Offset(page, size),
	}
	return fetchPage(ctx, page, size,
		func(ctx context.Context) ([]*entities.HealthUnit, error) { return s.repo.FindWithMedicineInStock(ctx, f) },
		func(ctx context.Context) (int64, error) { return s.repo.CountWithMedicineInStock(ctx, f) },
	)
}

// AggregateMedicineStock pages through network-wide medicine totals. Unknown
// availability or classification values yield an empty page.
func (s *HealthUnitService) AggregateMedicineStock(ctx context.Context, page, size int, searchTerm, availability, classification string) (entities.Page[entities.MedicineTotalStock], error) {
	if err := validatePaging(page, size); err != nil {
		return entities.Page[entities.MedicineTotalStock]{}, err
	}
	avail, ok := parseOrDefault(availability, entities.AvailabilityAll, entities.ParseMedicineAvailability)
	if !ok {
		return entities.EmptyPage[entities.MedicineTotalStock](page, size), nil
	}
	class, ok := parseOrDefault(classification, entities.ClassificationBasic, entities.ParseDrugClassification)
	if !ok {
		return entities.EmptyPage[entities.MedicineTotalStock](page, size), nil
	}

	f := repositories.MedicineStockFilter{
		SearchTerm:     searchTerm,
		Availability:   avail,
		Classification: class,
		Limit:          size,
		Offset:         entities.Offset(page, size),
	}
	return fetchPage(ctx, page, size,
		func(ctx context.Context) ([]entities.MedicineTotalStock, error) { return s.repo.AggregateMedicineStock(ctx, f) },
		func(ctx context.Context) (int64, error) { return s.repo.CountMedicineStock(ctx, f) },
	)
}

// fetchPage runs the content query and its count concurrently
func fetchPage[T any](
	ctx context.Context,
	page, size int,
	list func(context.Context) ([]T, error),
	count func(context.Context) (int64, error),
) (entities.Page[T], error) {
	var (
		content []T
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content, err = list(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return entities.Page[T]{}, err
	}
	return entities.NewPage(content, page, size, total), nil
}

func validatePaging(page, size int) error {
	if page < 0 {
		return apperrors.NewValidationError(fmt.Sprintf("page must be >= 0, got %d", page))
	}
	if size < 1 || size > MaxPageSize {
		return apperrors.NewValidationError(fmt.Sprintf("size must be between 1 and %d, got %d", MaxPageSize, size))
	}
	return nil
}

// parseOrDefault maps a blank value to def and anything else through parse
func parseOrDefault[T any](value string, def T, parse func(string) (T, bool)) (T, bool) {
	if strings.TrimSpace(value) == "" {
		return def, true
	}
	return parse(value)
}
