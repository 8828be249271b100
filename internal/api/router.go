package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/citadel/internal/api/middleware"
	"github.com/kiranshivaraju/citadel/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Session   *mw.Session
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	UploadAnalysis http.HandlerFunc
	ListAnalyses   http.HandlerFunc
	GetAnalysis    http.HandlerFunc
	DeleteAnalysis http.HandlerFunc
	AnalysisEvents http.HandlerFunc
	ExportAnalysis http.HandlerFunc

	GetAISettings        http.HandlerFunc
	PutAISettings        http.HandlerFunc
	GetDashboardSettings http.HandlerFunc
	PutDashboardSettings http.HandlerFunc
	SettingsEvents       http.HandlerFunc

	ListProviders http.HandlerFunc
	TestProvider  http.HandlerFunc
	PullModel     http.HandlerFunc

	// DevProxy is mounted at each of its prefixes when set.
	DevProxy interface {
		http.Handler
		Prefixes() []string
	}
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	if deps.DevProxy != nil {
		for _, prefix := range deps.DevProxy.Prefixes() {
			r.Mount(prefix, deps.DevProxy)
		}
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.Session.Identify)

		r.Get("/api/v1/analyses", orNotImplemented(deps.ListAnalyses))
		r.Get("/api/v1/analyses/{id}", orNotImplemented(deps.GetAnalysis))
		r.Get("/api/v1/analyses/{id}/events", orNotImplemented(deps.AnalysisEvents))
		r.Get("/api/v1/analyses/{id}/export", orNotImplemented(deps.ExportAnalysis))

		r.Get("/api/v1/settings/ai", orNotImplemented(deps.GetAISettings))
		r.Get("/api/v1/settings/dashboard", orNotImplemented(deps.GetDashboardSettings))
		r.Get("/api/v1/settings/events", orNotImplemented(deps.SettingsEvents))

		r.Get("/api/v1/providers", orNotImplemented(deps.ListProviders))

		// Mutating routes
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimit.Limit)

			r.Post("/api/v1/analyses", orNotImplemented(deps.UploadAnalysis))
			r.Delete("/api/v1/analyses/{id}", orNotImplemented(deps.DeleteAnalysis))

			r.Put("/api/v1/settings/ai", orNotImplemented(deps.PutAISettings))
			r.Put("/api/v1/settings/dashboard", orNotImplemented(deps.PutDashboardSettings))

			r.Post("/api/v1/providers/ollama/pull", orNotImplemented(deps.PullModel))
			r.Post("/api/v1/providers/{id}/test", orNotImplemented(deps.TestProvider))
		})
	})

	return r
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
