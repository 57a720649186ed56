package database

import (
	"regexp"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
)

const matchAll = ".*"

// expensiveCodePattern marks CATMAT codes of the specialized (high-cost) component
const expensiveCodePattern = `^(1\.A|1\.B)`

// searchPattern turns a user search term into a literal, case-insensitive regex.
// A blank term yields "" which callers treat as no predicate.
func searchPattern(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	return regexp.QuoteMeta(term)
}

// patternOrMatchAll is used where the predicate is embedded in a literal and cannot be omitted
func patternOrMatchAll(term string) string {
	if p := searchPattern(term); p != "" {
		return p
	}
	return matchAll
}

// locationTypePredicates maps each location filter to its WHERE clause; ALL adds none
var locationTypePredicates = map[entities.LocationType]exp.Expression{
	entities.LocationTypeAll:      nil,
	entities.LocationTypeDistrict: goqu.I("f.location_type").Eq(string(entities.LocationTypeDistrict)),
	entities.LocationTypeRural:    goqu.I("f.location_type").Eq(string(entities.LocationTypeRural)),
	entities.LocationTypeUrban:    goqu.I("f.location_type").Eq(string(entities.LocationTypeUrban)),
}

// availabilityPredicates maps each availability filter to its HAVING clause on the summed stock
var availabilityPredicates = map[entities.MedicineAvailability]exp.Expression{
	entities.AvailabilityAll:         nil,
	entities.AvailabilityAvailable:   goqu.SUM(goqu.I("m.total_quantity")).Gt(0),
	entities.AvailabilityUnavailable: goqu.SUM(goqu.I("m.total_quantity")).Eq(0),
}

// classificationPredicates maps each cost tier to its WHERE clause on the medicine code
var classificationPredicates = map[entities.DrugClassification]exp.Expression{
	entities.ClassificationAll:       nil,
	entities.ClassificationExpensive: goqu.I("m.catmat_code").RegexpLike(expensiveCodePattern),
	entities.ClassificationBasic:     goqu.I("m.catmat_code").RegexpNotLike(expensiveCodePattern),
}

// healthUnitSearch matches the name or the city of a facility
func healthUnitSearch(term string) exp.Expression {
	p := searchPattern(term)
	if p == "" {
		return nil
	}
	return goqu.Or(
		goqu.I("f.name").RegexpILike(p),
		goqu.I("f.city").RegexpILike(p),
	)
}

// medicineSearch matches the description of an unwound medicine row
func medicineSearch(term string) exp.Expression {
	p := searchPattern(term)
	if p == "" {
		return nil
	}
	return goqu.I("m.description").RegexpILike(p)
}

// medicineInStock selects facilities holding at least one matching medicine with stock
func medicineInStock(term string) exp.Expression {
	return goqu.L(
		"EXISTS (SELECT 1 FROM jsonb_to_recordset(f.medicines) AS s(description text, total_quantity bigint) "+
			"WHERE s.description ~* ? AND s.total_quantity > 0)",
		patternOrMatchAll(term),
	)
}

// matchingMedicines narrows a facility's medicines array to the matching in-stock entries,
// keeping their stored order
func matchingMedicines(term string) exp.LiteralExpression {
	return goqu.L(
		"(SELECT COALESCE(jsonb_agg(e.value ORDER BY e.idx), '[]'::jsonb) "+
			"FROM jsonb_array_elements(f.medicines) WITH ORDINALITY AS e(value, idx) "+
			"WHERE e.value->>'description' ~* ? AND (e.value->>'total_quantity')::bigint > 0)",
		patternOrMatchAll(term),
	)
}

// unwoundMedicines expands the medicines array into one row per medicine
var unwoundMedicines = goqu.L("LATERAL jsonb_to_recordset(f.medicines) AS m(catmat_code text, description text, total_quantity bigint)")

// where appends non-nil predicates
func where(ds *goqu.SelectDataset, predicates ...exp.Expression) *goqu.SelectDataset {
	for _, p := range predicates {
		if p != nil {
			ds = ds.Where(p)
		}
	}
	return ds
}
