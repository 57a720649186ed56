package routes

import (
	"net/http"

	"github.com/saudeaberta/medstock-api/internal/api/handlers"
	"github.com/saudeaberta/medstock-api/internal/api/middleware"
	"github.com/saudeaberta/medstock-api/internal/infrastructure/observability"
)

// Options configures the router's cross-cutting behavior
type Options struct {
	AllowedOrigins []string
	AdminToken     string
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	healthUnitHandler *handlers.HealthUnitHandler
	medicineHandler   *handlers.MedicineHandler
	adminHandler      *handlers.AdminHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
	options         Options
}

// NewRouter creates a new router. adminHandler and cacheMiddleware may be nil.
func NewRouter(
	healthUnitHandler *handlers.HealthUnitHandler,
	medicineHandler *handlers.MedicineHandler,
	adminHandler *handlers.AdminHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	options Options,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		healthUnitHandler: healthUnitHandler,
		medicineHandler:   medicineHandler,
		adminHandler:      adminHandler,
		cacheMiddleware:   cacheMiddleware,
		metrics:           metrics,
		options:           options,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", handlers.Health)

	// Health unit endpoints
	r.mux.HandleFunc("GET /health-units", r.healthUnitHandler.ListHealthUnits)
	r.mux.HandleFunc("GET /health-units/by-medicine", r.healthUnitHandler.FindUnitsByMedicine)
	r.mux.HandleFunc("GET /health-units/{cnesCode}/medicines", r.healthUnitHandler.ListMedicines)

	// Medicine endpoints
	r.mux.HandleFunc("GET /medicines/summary/all", r.medicineHandler.SummarizeStock)

	// Operator endpoints
	if r.adminHandler != nil {
		admin := middleware.AdminAuth(r.options.AdminToken)
		r.mux.Handle("GET /admin/jobs", admin(http.HandlerFunc(r.adminHandler.ListJobs)))
		r.mux.Handle("POST /admin/jobs/{name}/run", admin(http.HandlerFunc(r.adminHandler.RunJob)))
	}

	// Apply middleware inside-out. Observability wraps the mux so it sees the matched
	// pattern; CORS is outermost so cached responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(r.options.AllowedOrigins)(handler)

	return handler
}
