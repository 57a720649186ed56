package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saudeaberta/medstock-api/internal/application/services"
	"github.com/saudeaberta/medstock-api/internal/domain/entities"
)

var saoPaulo = mustLoadLocation("America/Sao_Paulo")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// fixedNow is 2024-03-10 12:00 in Sao Paulo
func fixedNow() time.Time {
	return time.Date(2024, 3, 10, 12, 0, 0, 0, saoPaulo)
}

func date(t *testing.T, s string) entities.Date {
	t.Helper()
	d, err := entities.ParseDate(s)
	require.NoError(t, err)
	return d
}

func record(cnes, catmat string, qty int64) entities.RawStockRecord {
	return entities.RawStockRecord{
		CnesCode:            cnes,
		FacilityName:        "UBS " + cnes,
		Street:              "RUA A",
		Number:              "10",
		Neighborhood:        "CENTRO",
		City:                "CAUCAIA",
		State:               "CE",
		CatmatCode:          catmat,
		MedicineDescription: "MED " + catmat,
		Quantity:            qty,
	}
}

func TestDateDiscovery_FindsNewestPublishedDay(t *testing.T) {
	source := newFakeStockSource()
	source.records["2024-03-07"] = []entities.RawStockRecord{record("1", "BR1", 1)}
	source.records["2024-03-01"] = []entities.RawStockRecord{record("1", "BR1", 1)}

	found, err := services.NewDateDiscovery(source, 30, saoPaulo).WithClock(fixedNow).Discover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "2024-03-07", found.String())

	require.Len(t, source.calls, 4)
	assert.Equal(t, fetchCall{date: "2024-03-10", limit: 1, offset: 0}, source.calls[0])
	assert.Equal(t, "2024-03-07", source.calls[3].date)
}

func TestDateDiscovery_NothingPublished(t *testing.T) {
	source := newFakeStockSource()

	found, err := services.NewDateDiscovery(source, 30, saoPaulo).WithClock(fixedNow).Discover(context.Background())
	require.NoError(t, err)
	assert.Nil(t, found)
	require.Len(t, source.calls, 30)
	assert.Equal(t, "2024-02-10", source.calls[29].date)
}

func TestDateDiscovery_ProbeErrorCountsAsEmpty(t *testing.T) {
	source := newFakeStockSource()
	source.failing["2024-03-10"] = errors.New("502 bad gateway")
	source.records["2024-03-09"] = []entities.RawStockRecord{record("1", "BR1", 1)}

	found, err := services.NewDateDiscovery(source, 30, saoPaulo).WithClock(fixedNow).Discover(context.Background())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "2024-03-09", found.String())
}

func TestDateDiscovery_TodayIsEvaluatedInZone(t *testing.T) {
	source := newFakeStockSource()
	// 01:00 UTC on the 10th is still the 9th in Sao Paulo
	clock := func() time.Time { return time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC) }

	_, err := services.NewDateDiscovery(source, 1, saoPaulo).WithClock(clock).Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, source.calls, 1)
	assert.Equal(t, "2024-03-09", source.calls[0].date)
}

func TestStockFetcher_ReadsUntilEmptyPage(t *testing.T) {
	source := &pagedStockSource{sizes: []int{50, 50, 50, 7, 0}}

	records, err := services.NewStockFetcher(source, 50).FetchAll(context.Background(), date(t, "2024-03-07"))
	require.NoError(t, err)
	assert.Len(t, records, 157)
	assert.Equal(t, []int{0, 50, 100, 150, 200}, source.offsets)
}

func TestStockFetcher_PageErrorAborts(t *testing.T) {
	source := &pagedStockSource{sizes: []int{50, 50, 50}, err: errors.New("timeout"), failAt: 1}

	records, err := services.NewStockFetcher(source, 50).FetchAll(context.Background(), date(t, "2024-03-07"))
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Len(t, source.offsets, 2)
}

func TestAggregator_FoldsRecordsPerFacility(t *testing.T) {
	lat, lon := -3.7361234, -38.6531234
	first := record("2372325", "BR1", 10)
	first.Latitude, first.Longitude = &lat, &lon
	first.Phone = "85 3342-0000"

	dup := record("2372325", "BR1", 5)
	dup.MedicineDescription = "LATER DESCRIPTION"
	dup.FacilityName = "LATER NAME"

	second := record("2372325", "BR2", 0)
	other := record("9999999", "BR1", 3)
	other.Neighborhood = "ZONA RURAL"

	stockDate := date(t, "2024-03-07")
	units := services.NewAggregator(true).Aggregate([]entities.RawStockRecord{first, other, dup, second}, stockDate)
	require.Len(t, units, 2)

	u := units[0]
	assert.Equal(t, "2372325", u.CnesCode)
	assert.Equal(t, "UBS 2372325", u.Name)
	assert.Equal(t, entities.LocationTypeUrban, u.LocationType)
	assert.Equal(t, entities.Location{Longitude: lon, Latitude: lat}, u.Location)
	require.NotNil(t, u.Phone)
	assert.Equal(t, "85 3342-0000", *u.Phone)
	assert.Nil(t, u.Email)
	assert.Equal(t, stockDate, u.LastStockUpdate)
	assert.Equal(t, []entities.MedicineStock{
		{CatmatCode: "BR1", Description: "MED BR1", TotalQuantity: 15},
		{CatmatCode: "BR2", Description: "MED BR2", TotalQuantity: 0},
	}, u.Medicines)

	r := units[1]
	assert.Equal(t, "9999999", r.CnesCode)
	assert.Equal(t, entities.LocationTypeRural, r.LocationType)
	assert.Equal(t, entities.Location{}, r.Location)
}

func TestAggregator_ClassificationDisabled(t *testing.T) {
	rec := record("1", "BR1", 1)
	rec.Street = "DISTRITO DE JUREMA"

	units := services.NewAggregator(false).Aggregate([]entities.RawStockRecord{rec}, date(t, "2024-03-07"))
	require.Len(t, units, 1)
	assert.Equal(t, entities.LocationType(""), units[0].LocationType)

	units = services.NewAggregator(true).Aggregate([]entities.RawStockRecord{rec}, date(t, "2024-03-07"))
	assert.Equal(t, entities.LocationTypeDistrict, units[0].LocationType)
}

func TestAggregator_EmptyInput(t *testing.T) {
	units := services.NewAggregator(true).Aggregate(nil, date(t, "2024-03-07"))
	assert.Empty(t, units)
}

func TestLoader_UpsertsWithoutDeleting(t *testing.T) {
	repo := new(MockHealthUnitRepository)
	units := []*entities.HealthUnit{{CnesCode: "1"}, {CnesCode: "2"}}
	repo.On("UpsertAll", context.Background(), units).Return(nil).Once()

	n, err := services.NewLoader(repo).Load(context.Background(), units)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	// every repository call is declared; an unexpected write would panic
	repo.AssertExpectations(t)
}

func TestLoader_NothingToLoad(t *testing.T) {
	repo := new(MockHealthUnitRepository)
	n, err := services.NewLoader(repo).Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	repo.AssertNotCalled(t, "UpsertAll")
}
