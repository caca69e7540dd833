package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/mealtrack/internal/api/middleware"
	"github.com/kiranshivaraju/mealtrack/internal/api/response"
	"github.com/kiranshivaraju/mealtrack/internal/apikey"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	GetProfile http.HandlerFunc
	PutProfile http.HandlerFunc

	CreateMeal   http.HandlerFunc
	ListMeals    http.HandlerFunc
	GetMeal      http.HandlerFunc
	UpdateMeal   http.HandlerFunc
	DeleteMeal   http.HandlerFunc
	AnalyzeMeal  http.HandlerFunc
	MealAnalysis http.HandlerFunc

	CreatePlan   http.HandlerFunc
	ListPlans    http.HandlerFunc
	GetPlan      http.HandlerFunc
	DeletePlan   http.HandlerFunc
	AnalyzePlan  http.HandlerFunc
	PlanAnalysis http.HandlerFunc

	Notifications http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc

	// AppShell serves everything outside /api, normally the offline controller.
	AppShell http.Handler
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(apikey.ScopeRead))

			r.Get("/api/v1/profile", orNotImplemented(deps.GetProfile))
			r.Get("/api/v1/meals", orNotImplemented(deps.ListMeals))
			r.Get("/api/v1/meals/{mealID}", orNotImplemented(deps.GetMeal))
			r.Get("/api/v1/meals/{mealID}/analysis", orNotImplemented(deps.MealAnalysis))
			r.Get("/api/v1/plans", orNotImplemented(deps.ListPlans))
			r.Get("/api/v1/plans/{planID}", orNotImplemented(deps.GetPlan))
			r.Get("/api/v1/plans/{planID}/analysis", orNotImplemented(deps.PlanAnalysis))
			r.Get("/api/v1/notifications", orNotImplemented(deps.Notifications))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(apikey.ScopeWrite))

			r.Put("/api/v1/profile", orNotImplemented(deps.PutProfile))
			r.Post("/api/v1/meals", orNotImplemented(deps.CreateMeal))
			r.Put("/api/v1/meals/{mealID}", orNotImplemented(deps.UpdateMeal))
			r.Delete("/api/v1/meals/{mealID}", orNotImplemented(deps.DeleteMeal))
			r.Post("/api/v1/meals/{mealID}/analyze", orNotImplemented(deps.AnalyzeMeal))
			r.Post("/api/v1/plans", orNotImplemented(deps.CreatePlan))
			r.Delete("/api/v1/plans/{planID}", orNotImplemented(deps.DeletePlan))
			r.Post("/api/v1/plans/{planID}/analyze", orNotImplemented(deps.AnalyzePlan))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(apikey.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	r.NotFound(fallback(deps.AppShell))
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}

// fallback answers unknown /api paths with a JSON 404 and hands the rest to
// the app shell.
func fallback(shell http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if shell == nil || r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Route not found", nil)
			return
		}
		shell.ServeHTTP(w, r)
	}
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
