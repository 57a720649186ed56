package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/goccy/go-json"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/repositories"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/clients/postgres"
	apperrors "github.com/saudeaberta/medstock-api/pkg/errors"
)

// upsertBatchSize bounds the number of rows per INSERT statement
const upsertBatchSize = 200

// medicineDocument is the stored shape of one element of the medicines column
type medicineDocument struct {
	CatmatCode    string `json:"catmat_code"`
	Description   string `json:"description"`
	TotalQuantity int64  `json:"total_quantity"`
}

var healthUnitColumns = []interface{}{
	goqu.I("f.cnes_code"),
	goqu.I("f.name"),
	goqu.I("f.street"),
	goqu.I("f.number"),
	goqu.I("f.neighborhood"),
	goqu.I("f.cep"),
	goqu.I("f.longitude"),
	goqu.I("f.latitude"),
	goqu.I("f.city"),
	goqu.I("f.state"),
	goqu.I("f.phone"),
	goqu.I("f.email"),
	goqu.I("f.location_type"),
	goqu.I("f.last_stock_update"),
}

// HealthUnitAdapter implements HealthUnitRepository on PostgreSQL
type HealthUnitAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewHealthUnitAdapter creates a new health unit adapter
func NewHealthUnitAdapter(client *postgres.Client) repositories.HealthUnitRepository {
	return &HealthUnitAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

func (a *HealthUnitAdapter) from() *goqu.SelectDataset {
	return a.db.From(goqu.T(healthUnitsTable).As("f"))
}

// UpsertAll inserts or replaces facilities in batches. Batches are independent.
func (a *HealthUnitAdapter) UpsertAll(ctx context.Context, units []*entities.HealthUnit) error {
	for start := 0; start < len(units); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(units) {
			end = len(units)
		}
		if err := a.upsertBatch(ctx, units[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (a *HealthUnitAdapter) upsertBatch(ctx context.Context, units []*entities.HealthUnit) error {
	rows := make([]interface{}, 0, len(units))
	for _, u := range units {
		record, err := toRecord(u)
		if err != nil {
			return apperrors.NewInternalError(fmt.Sprintf("failed to encode health unit %s", u.CnesCode), err)
		}
		rows = append(rows, record)
	}

	query, args, err := a.db.Insert(healthUnitsTable).
		Rows(rows...).
		OnConflict(goqu.DoUpdate("cnes_code", goqu.Record{
			"name":              goqu.L("EXCLUDED.name"),
			"street":            goqu.L("EXCLUDED.street"),
			"number":            goqu.L("EXCLUDED.number"),
			"neighborhood":      goqu.L("EXCLUDED.neighborhood"),
			"cep":               goqu.L("EXCLUDED.cep"),
			"longitude":         goqu.L("EXCLUDED.longitude"),
			"latitude":          goqu.L("EXCLUDED.latitude"),
			"city":              goqu.L("EXCLUDED.city"),
			"state":             goqu.L("EXCLUDED.state"),
			"phone":             goqu.L("EXCLUDED.phone"),
			"email":             goqu.L("EXCLUDED.email"),
			"location_type":     goqu.L("EXCLUDED.location_type"),
			"last_stock_update": goqu.L("EXCLUDED.last_stock_update"),
			"medicines":         goqu.L("EXCLUDED.medicines"),
			"updated_at":        goqu.L("EXCLUDED.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert health units", err)
	}
	return nil
}

func toRecord(u *entities.HealthUnit) (goqu.Record, error) {
	docs := make([]medicineDocument, 0, len(u.Medicines))
	for _, m := range u.Medicines {
		docs = append(docs, medicineDocument{
			CatmatCode:    m.CatmatCode,
			Description:   m.Description,
			TotalQuantity: m.TotalQuantity,
		})
	}
	medicines, err := json.Marshal(docs)
	if err != nil {
		return nil, err
	}

	return goqu.Record{
		"cnes_code":         u.CnesCode,
		"name":              u.Name,
		"street":            u.Address.Street,
		"number":            u.Address.Number,
		"neighborhood":      u.Address.Neighborhood,
		"cep":               u.Address.Cep,
		"longitude":         u.Location.Longitude,
		"latitude":          u.Location.Latitude,
		"city":              u.City,
		"state":             u.State,
		"phone":             nullString(u.Phone),
		"email":             nullString(u.Email),
		"location_type":     sql.NullString{String: string(u.LocationType), Valid: u.LocationType != ""},
		"last_stock_update": u.LastStockUpdate.String(),
		"medicines":         goqu.L("?::jsonb", string(medicines)),
		"updated_at":        goqu.L("NOW()"),
	}, nil
}

// UpdateLocation rewrites only the coordinates of one facility
func (a *HealthUnitAdapter) UpdateLocation(ctx context.Context, cnesCode string, location entities.Location) error {
	query, args, err := a.db.Update(healthUnitsTable).
		Set(goqu.Record{
			"longitude":  location.Longitude,
			"latitude":   location.Latitude,
			"updated_at": goqu.L("NOW()"),
		}).
		Where(goqu.Ex{"cnes_code": cnesCode}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update health unit location", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("health unit %s not found", cnesCode))
	}
	return nil
}

// ExistsByCode reports whether a facility is stored
func (a *HealthUnitAdapter) ExistsByCode(ctx context.Context, cnesCode string) (bool, error) {
	query, args, err := a.db.From(healthUnitsTable).
		Select(goqu.L("1")).
		Where(goqu.Ex{"cnes_code": cnesCode}).
		Limit(1).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var one int
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewInternalError("failed to check health unit", err)
	}
	return true, nil
}

// LatestStockUpdate returns MAX(last_stock_update), or nil when the table is empty
func (a *HealthUnitAdapter) LatestStockUpdate(ctx context.Context) (*entities.Date, error) {
	query, args, err := a.db.From(healthUnitsTable).
		Select(goqu.MAX("last_stock_update")).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var latest sql.NullTime
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&latest); err != nil {
		return nil, apperrors.NewInternalError("failed to read latest stock update", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	d := entities.NewDate(latest.Time)
	return &d, nil
}

func (a *HealthUnitAdapter) listDataset(filter repositories.HealthUnitFilter) (*goqu.SelectDataset, error) {
	typePredicate, ok := locationTypePredicates[filter.LocationType]
	if !ok && filter.LocationType != "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown location type %q", filter.LocationType))
	}
	return where(a.from(), healthUnitSearch(filter.SearchTerm), typePredicate), nil
}

// List retrieves facilities matching the name-or-city search and location type
func (a *HealthUnitAdapter) List(ctx context.Context, filter repositories.HealthUnitFilter) ([]*entities.HealthUnit, error) {
	ds, err := a.listDataset(filter)
	if err != nil {
		return nil, err
	}
	ds = paginate(ds.Select(healthUnitColumns...).
		Order(goqu.I("f.name").Asc(), goqu.I("f.cnes_code").Asc()), filter.Limit, filter.Offset)

	return a.queryHealthUnits(ctx, ds, false)
}

// CountList counts facilities matching the same predicates as List
func (a *HealthUnitAdapter) CountList(ctx context.Context, filter repositories.HealthUnitFilter) (int64, error) {
	ds, err := a.listDataset(filter)
	if err != nil {
		return 0, err
	}
	return a.count(ctx, ds.Select(goqu.COUNT(goqu.Star())))
}

// FindWithMedicineInStock retrieves facilities holding a matching in-stock medicine
func (a *HealthUnitAdapter) FindWithMedicineInStock(ctx context.Context, filter repositories.MedicineSearchFilter) ([]*entities.HealthUnit, error) {
	columns := append(append([]interface{}{}, healthUnitColumns...), matchingMedicines(filter.SearchTerm).As("medicines"))

	ds := paginate(a.from().
		Select(columns...).
		Where(medicineInStock(filter.SearchTerm)).
		Order(goqu.I("f.name").Asc(), goqu.I("f.cnes_code").Asc()), filter.Limit, filter.Offset)

	return a.queryHealthUnits(ctx, ds, true)
}

// CountWithMedicineInStock counts the facilities FindWithMedicineInStock can return
func (a *HealthUnitAdapter) CountWithMedicineInStock(ctx context.Context, filter repositories.MedicineSearchFilter) (int64, error) {
	return a.count(ctx, a.from().
		Select(goqu.COUNT(goqu.Star())).
		Where(medicineInStock(filter.SearchTerm)))
}

// ListMedicines pages through one facility's medicines ordered by description
func (a *HealthUnitAdapter) ListMedicines(ctx context.Context, cnesCode string, limit, offset int) ([]entities.MedicineStock, error) {
	ds := paginate(a.from().
		CrossJoin(unwoundMedicines).
		Select(goqu.I("m.catmat_code"), goqu.I("m.description"), goqu.I("m.total_quantity")).
		Where(goqu.I("f.cnes_code").Eq(cnesCode)).
		Order(goqu.I("m.description").Asc(), goqu.I("m.catmat_code").Asc()), limit, offset)

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list medicines", err)
	}
	defer rows.Close()

	medicines := []entities.MedicineStock{}
	for rows.Next() {
		var m entities.MedicineStock
		if err := rows.Scan(&m.CatmatCode, &m.Description, &m.TotalQuantity); err != nil {
			return nil, apperrors.NewInternalError("failed to scan medicine", err)
		}
		medicines = append(medicines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate medicines", err)
	}
	return medicines, nil
}

// CountMedicines counts one facility's medicines
func (a *HealthUnitAdapter) CountMedicines(ctx context.Context, cnesCode string) (int64, error) {
	return a.count(ctx, a.from().
		CrossJoin(unwoundMedicines).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.I("f.cnes_code").Eq(cnesCode)))
}

func (a *HealthUnitAdapter) stockDataset(filter repositories.MedicineStockFilter) (*goqu.SelectDataset, error) {
	availability, ok := availabilityPredicates[filter.Availability]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown availability filter %q", filter.Availability))
	}
	classification, ok := classificationPredicates[filter.Classification]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown classification %q", filter.Classification))
	}

	ds := where(a.from().CrossJoin(unwoundMedicines), medicineSearch(filter.SearchTerm), classification).
		GroupBy(goqu.I("m.catmat_code"))
	if availability != nil {
		ds = ds.Having(availability)
	}
	return ds, nil
}

// AggregateMedicineStock unwinds every facility's medicines, groups them by code and sums
// the quantities, ordered by description
func (a *HealthUnitAdapter) AggregateMedicineStock(ctx context.Context, filter repositories.MedicineStockFilter) ([]entities.MedicineTotalStock, error) {
	ds, err := a.stockDataset(filter)
	if err != nil {
		return nil, err
	}

	description := goqu.MIN(goqu.I("m.description"))
	ds = paginate(ds.Select(
		goqu.I("m.catmat_code"),
		description.As("description"),
		goqu.Cast(goqu.SUM(goqu.I("m.total_quantity")), "BIGINT").As("total_stock"),
	).Order(description.Asc(), goqu.I("m.catmat_code").Asc()), filter.Limit, filter.Offset)

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build aggregation query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to aggregate medicine stock", err)
	}
	defer rows.Close()

	totals := []entities.MedicineTotalStock{}
	for rows.Next() {
		var t entities.MedicineTotalStock
		if err := rows.Scan(&t.CatmatCode, &t.Description, &t.TotalStock); err != nil {
			return nil, apperrors.NewInternalError("failed to scan medicine total", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate medicine totals", err)
	}
	return totals, nil
}

// CountMedicineStock counts the groups AggregateMedicineStock can return
func (a *HealthUnitAdapter) CountMedicineStock(ctx context.Context, filter repositories.MedicineStockFilter) (int64, error) {
	ds, err := a.stockDataset(filter)
	if err != nil {
		return 0, err
	}
	inner := ds.Select(goqu.I("m.catmat_code"))
	return a.count(ctx, a.db.From(inner.As("t")).Select(goqu.COUNT(goqu.Star())))
}

func (a *HealthUnitAdapter) count(ctx context.Context, ds *goqu.SelectDataset) (int64, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int64
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, apperrors.NewInternalError("failed to count", err)
	}
	return total, nil
}

func (a *HealthUnitAdapter) queryHealthUnits(ctx context.Context, ds *goqu.SelectDataset, withMedicines bool) ([]*entities.HealthUnit, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list health units", err)
	}
	defer rows.Close()

	units := []*entities.HealthUnit{}
	for rows.Next() {
		unit := &entities.HealthUnit{}
		var phone, email, locationType sql.NullString
		var lastStockUpdate time.Time
		dest := []interface{}{
			&unit.CnesCode,
			&unit.Name,
			&unit.Address.Street,
			&unit.Address.Number,
			&unit.Address.Neighborhood,
			&unit.Address.Cep,
			&unit.Location.Longitude,
			&unit.Location.Latitude,
			&unit.City,
			&unit.State,
			&phone,
			&email,
			&locationType,
			&lastStockUpdate,
		}
		var medicines []byte
		if withMedicines {
			dest = append(dest, &medicines)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.NewInternalError("failed to scan health unit", err)
		}

		if phone.Valid {
			unit.Phone = &phone.String
		}
		if email.Valid {
			unit.Email = &email.String
		}
		unit.LocationType = entities.LocationType(locationType.String)
		unit.LastStockUpdate = entities.NewDate(lastStockUpdate)

		if withMedicines {
			unit.Medicines, err = decodeMedicines(medicines)
			if err != nil {
				return nil, apperrors.NewInternalError(fmt.Sprintf("failed to decode medicines of %s", unit.CnesCode), err)
			}
		}

		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate health units", err)
	}
	return units, nil
}

func decodeMedicines(raw []byte) ([]entities.MedicineStock, error) {
	medicines := []entities.MedicineStock{}
	if len(raw) == 0 {
		return medicines, nil
	}
	var docs []medicineDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		medicines = append(medicines, entities.MedicineStock{
			CatmatCode:    d.CatmatCode,
			Description:   d.Description,
			TotalQuantity: d.TotalQuantity,
		})
	}
	return medicines, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func paginate(ds *goqu.SelectDataset, limit, offset int) *goqu.SelectDataset {
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}
	return ds
}
