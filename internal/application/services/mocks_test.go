package services_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/domain/providers"
	"github.com/saudeaberta/medstock-api/internal/domain/repositories"
)

// MockHealthUnitRepository is a testify mock of the repository
type MockHealthUnitRepository struct {
	mock.Mock
}

func (m *MockHealthUnitRepository) UpsertAll(ctx context.Context, units []*entities.HealthUnit) error {
	return m.Called(ctx, units).Error(0)
}

func (m *MockHealthUnitRepository) UpdateLocation(ctx context.Context, cnesCode string, location entities.Location) error {
	return m.Called(ctx, cnesCode, location).Error(0)
}

func (m *MockHealthUnitRepository) ExistsByCode(ctx context.Context, cnesCode string) (bool, error) {
	args := m.Called(ctx, cnesCode)
	return args.Bool(0), args.Error(1)
}

func (m *MockHealthUnitRepository) LatestStockUpdate(ctx context.Context) (*entities.Date, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Date), args.Error(1)
}

func (m *MockHealthUnitRepository) List(ctx context.Context, filter repositories.HealthUnitFilter) ([]*entities.HealthUnit, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.HealthUnit), args.Error(1)
}

func (m *MockHealthUnitRepository) CountList(ctx context.Context, filter repositories.HealthUnitFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHealthUnitRepository) FindWithMedicineInStock(ctx context.Context, filter repositories.MedicineSearchFilter) ([]*entities.HealthUnit, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.HealthUnit), args.Error(1)
}

func (m *MockHealthUnitRepository) CountWithMedicineInStock(ctx context.Context, filter repositories.MedicineSearchFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHealthUnitRepository) ListMedicines(ctx context.Context, cnesCode string, limit, offset int) ([]entities.MedicineStock, error) {
	args := m.Called(ctx, cnesCode, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.MedicineStock), args.Error(1)
}

func (m *MockHealthUnitRepository) CountMedicines(ctx context.Context, cnesCode string) (int64, error) {
	args := m.Called(ctx, cnesCode)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockHealthUnitRepository) AggregateMedicineStock(ctx context.Context, filter repositories.MedicineStockFilter) ([]entities.MedicineTotalStock, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.MedicineTotalStock), args.Error(1)
}

func (m *MockHealthUnitRepository) CountMedicineStock(ctx context.Context, filter repositories.MedicineStockFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type fetchCall struct {
	date   string
	limit  int
	offset int
}

// fakeStockSource serves in-memory records per day and records every call
type fakeStockSource struct {
	mu      sync.Mutex
	records map[string][]entities.RawStockRecord
	failing map[string]error
	calls   []fetchCall
}

func newFakeStockSource() *fakeStockSource {
	return &fakeStockSource{
		records: map[string][]entities.RawStockRecord{},
		failing: map[string]error{},
	}
}

func (s *fakeStockSource) FetchPage(ctx context.Context, date entities.Date, limit, offset int) ([]entities.RawStockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fetchCall{date: date.String(), limit: limit, offset: offset})

	if err, ok := s.failing[date.String()]; ok {
		return nil, err
	}
	all := s.records[date.String()]
	if offset >= len(all) {
		return []entities.RawStockRecord{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// fullFetchCalls counts requests made by the fetcher rather than by discovery probes
func (s *fakeStockSource) fullFetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.limit > 1 {
			n++
		}
	}
	return n
}

// pagedStockSource returns pages of fixed sizes in order, then empty pages
type pagedStockSource struct {
	sizes   []int
	offsets []int
	err     error
	failAt  int
}

func (s *pagedStockSource) FetchPage(ctx context.Context, date entities.Date, limit, offset int) ([]entities.RawStockRecord, error) {
	call := len(s.offsets)
	s.offsets = append(s.offsets, offset)
	if s.err != nil && call == s.failAt {
		return nil, s.err
	}
	if call >= len(s.sizes) {
		return []entities.RawStockRecord{}, nil
	}
	page := make([]entities.RawStockRecord, s.sizes[call])
	for i := range page {
		page[i] = entities.RawStockRecord{CnesCode: fmt.Sprintf("%07d", offset+i), CatmatCode: "BR1", Quantity: 1}
	}
	return page, nil
}

// MockGeocoder is a testify mock of the geolocation provider
type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (*providers.Coordinates, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Coordinates), args.Error(1)
}

// MockCacheProvider records deleted patterns
type MockCacheProvider struct {
	mu       sync.Mutex
	data     map[string][]byte
	patterns []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, fmt.Errorf("miss: %s", key)
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, pattern)
	return nil
}

func (m *MockCacheProvider) DeletedPatterns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.patterns...)
}
