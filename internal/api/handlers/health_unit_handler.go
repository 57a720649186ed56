package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/saudeaberta/medstock-api/internal/domain/entities"
)

// HealthUnitQueries is the read side the handlers depend on
type HealthUnitQueries interface {
	ListHealthUnits(ctx context.Context, page, size int, searchTerm, filter string) (entities.Page[*entities.HealthUnit], error)
	FindMedicinesByUnit(ctx context.Context, cnesCode string, page, size int) (entities.Page[entities.MedicineStock], error)
	FindUnitsByMedicine(ctx context.Context, page, size int, searchTerm string) (entities.Page[*entities.HealthUnit], error)
	AggregateMedicineStock(ctx context.Context, page, size int, searchTerm, availability, classification string) (entities.Page[entities.MedicineTotalStock], error)
}

// HealthUnitHandler handles facility HTTP requests
type HealthUnitHandler struct {
	queries HealthUnitQueries
}

// NewHealthUnitHandler creates a new health unit handler
func NewHealthUnitHandler(queries HealthUnitQueries) *HealthUnitHandler {
	return &HealthUnitHandler{queries: queries}
}

// ListHealthUnits handles GET /health-units
func (h *HealthUnitHandler) ListHealthUnits(w http.ResponseWriter, r *http.Request) {
	pq, err := parsePageQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	query := r.URL.Query()
	page, err := h.queries.ListHealthUnits(r.Context(), pq.Page, pq.Size, query.Get("searchTerm"), query.Get("filter"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newPageResponse(page))
}

// FindUnitsByMedicine handles GET /health-units/by-medicine
func (h *HealthUnitHandler) FindUnitsByMedicine(w http.ResponseWriter, r *http.Request) {
	pq, err := parsePageQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	searchTerm := r.URL.Query().Get("searchTerm")
	if strings.TrimSpace(searchTerm) == "" {
		respondWithError(w, http.StatusBadRequest, "searchTerm is required")
		return
	}

	page, err := h.queries.FindUnitsByMedicine(r.Context(), pq.Page, pq.Size, searchTerm)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newPageResponse(page))
}

// ListMedicines handles GET /health-units/{cnesCode}/medicines
func (h *HealthUnitHandler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	cnesCode := strings.TrimSpace(r.PathValue("cnesCode"))
	if cnesCode == "" {
		respondWithError(w, http.StatusBadRequest, "cnesCode is required")
		return
	}

	pq, err := parsePageQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	page, err := h.queries.FindMedicinesByUnit(r.Context(), cnesCode, pq.Page, pq.Size)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	// past the last page is a miss; an empty first page is a valid empty listing
	if page.IsEmpty() && pq.Page > 0 {
		respondWithError(w, http.StatusNotFound, "no medicines found for this page")
		return
	}

	respondWithJSON(w, http.StatusOK, newPageResponse(page))
}
