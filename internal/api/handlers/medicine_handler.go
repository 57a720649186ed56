package handlers

import "net/http"

// MedicineHandler serves the cross-facility medicine views
type MedicineHandler struct {
	queries HealthUnitQueries
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(queries HealthUnitQueries) *MedicineHandler {
	return &MedicineHandler{queries: queries}
}

// SummarizeStock handles GET /medicines/summary/all
func (h *MedicineHandler) SummarizeStock(w http.ResponseWriter, r *http.Request) {
	pq, err := parsePageQuery(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	query := r.URL.Query()
	page, err := h.queries.AggregateMedicineStock(
		r.Context(),
		pq.Page,
		pq.Size,
		query.Get("searchTerm"),
		query.Get("filter"),
		query.Get("classification"),
	)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, newPageResponse(page))
}
