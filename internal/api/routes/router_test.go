package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/saudeaberta/medstock-api/internal/api/handlers"
	"github.com/saudeaberta/medstock-api/internal/domain/entities"
	"github.com/saudeaberta/medstock-api/internal/scheduler"
)

type stubQueries struct{}

func (stubQueries) ListHealthUnits(_ context.Context, page, size int, _, _ string) (entities.Page[*entities.HealthUnit], error) {
	return entities.NewPage([]*entities.HealthUnit{{CnesCode: "2372325"}}, page, size, 1), nil
}

func (stubQueries) FindMedicinesByUnit(_ context.Context, _ string, page, size int) (entities.Page[entities.MedicineStock], error) {
	return entities.EmptyPage[entities.MedicineStock](page, size), nil
}

func (stubQueries) FindUnitsByMedicine(_ context.Context, page, size int, _ string) (entities.Page[*entities.HealthUnit], error) {
	return entities.EmptyPage[*entities.HealthUnit](page, size), nil
}

func (stubQueries) AggregateMedicineStock(_ context.Context, page, size int, _, _, _ string) (entities.Page[entities.MedicineTotalStock], error) {
	return entities.EmptyPage[entities.MedicineTotalStock](page, size), nil
}

type stubJobs struct{}

func (stubJobs) Trigger(string) error { return nil }
func (stubJobs) Status() []scheduler.JobStatus { return nil }

func newTestRouter(adminToken string) http.Handler {
	queries := stubQueries{}
	return NewRouter(
		handlers.NewHealthUnitHandler(queries),
		handlers.NewMedicineHandler(queries),
		handlers.NewAdminHandler(stubJobs{}),
		nil,
		nil,
		Options{AdminToken: adminToken},
	).SetupRoutes()
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter("s3cret")

	tests := []struct {
		name   string
		method string
		target string
		auth   string
		want   int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"list units", http.MethodGet, "/health-units", "", http.StatusOK},
		{"by medicine without term", http.MethodGet, "/health-units/by-medicine", "", http.StatusBadRequest},
		{"medicines of a unit", http.MethodGet, "/health-units/2372325/medicines", "", http.StatusOK},
		{"medicines past the end", http.MethodGet, "/health-units/2372325/medicines?page=2", "", http.StatusNotFound},
		{"summary", http.MethodGet, "/medicines/summary/all", "", http.StatusOK},
		{"wrong method", http.MethodPost, "/health-units", "", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"admin without token", http.MethodGet, "/admin/jobs", "", http.StatusUnauthorized},
		{"admin jobs", http.MethodGet, "/admin/jobs", "Bearer s3cret", http.StatusOK},
		{"admin trigger", http.MethodPost, "/admin/jobs/etl/run", "Bearer s3cret", http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRouter_AdminDisabledWithoutToken(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/etl/run", nil)
	req.Header.Set("Authorization", "Bearer ")
	newTestRouter("").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
