package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/citadel/internal/ai/ollama"
	"github.com/kiranshivaraju/citadel/internal/api/response"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// AISettingsReader supplies the current provider settings.
type AISettingsReader interface {
	AI(ctx context.Context) (models.AISettings, error)
}

// Prober checks providers and pulls local models.
type Prober interface {
	TestConnection(ctx context.Context, p models.AIProvider, onPull ollama.ProgressFunc) models.ConnectionTestResult
	Pull(ctx context.Context, p models.AIProvider, model string, onPull ollama.ProgressFunc) models.PullResult
}

// ProviderView is a registry row merged with the user's configuration.
type ProviderView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	BaseURL   string `json:"baseUrl"`
	Model     string `json:"model"`
	Enabled   bool   `json:"enabled"`
	HasAPIKey bool   `json:"hasApiKey"`
	Usable    bool   `json:"usable"`
	Active    bool   `json:"active"`
}

// ProviderViews lists every registry provider in registry order.
func ProviderViews(s models.AISettings) []ProviderView {
	active, hasActive := provider.Active(s)
	var out []ProviderView
	for _, spec := range provider.All() {
		p := configured(s, spec.ID)
		out = append(out, ProviderView{
			ID:        spec.ID,
			Name:      provider.DisplayName(p),
			Kind:      spec.Kind.String(),
			BaseURL:   provider.BaseURL(p),
			Model:     provider.Model(p),
			Enabled:   p.Enabled,
			HasAPIKey: p.APIKey != "",
			Usable:    provider.Usable(p),
			Active:    hasActive && active.ID == spec.ID,
		})
	}
	return out
}

// NewListProvidersHandler returns an http.HandlerFunc for GET /api/v1/providers.
func NewListProvidersHandler(svc AISettingsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.AI(r.Context())
		if err != nil {
			internalError(w, "load ai settings", err)
			return
		}
		response.JSON(w, ProviderViews(s))
	}
}

// NewTestProviderHandler returns an http.HandlerFunc for
// POST /api/v1/providers/{id}/test. With Accept: text/event-stream, model
// pull progress is streamed as "pull" events before the final "result".
func NewTestProviderHandler(svc AISettingsReader, prober Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := providerParam(w, r, svc)
		if !ok {
			return
		}

		if !response.WantsStream(r) {
			response.JSON(w, prober.TestConnection(r.Context(), p, nil))
			return
		}

		stream, ok := response.NewStream(w)
		if !ok {
			return
		}
		res := prober.TestConnection(r.Context(), p, func(pp models.PullProgress) {
			stream.Event("pull", pp)
		})
		stream.Event("result", res)
	}
}

// NewPullModelHandler returns an http.HandlerFunc for
// POST /api/v1/providers/ollama/pull. Progress is always streamed.
func NewPullModelHandler(svc AISettingsReader, prober Prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		s, err := svc.AI(r.Context())
		if err != nil {
			internalError(w, "load ai settings", err)
			return
		}
		p := configured(s, provider.LocalID)
		if req.Model == "" {
			req.Model = provider.Model(p)
		}

		stream, ok := response.NewStream(w)
		if !ok {
			return
		}
		res := prober.Pull(r.Context(), p, req.Model, func(pp models.PullProgress) {
			stream.Event("progress", pp)
		})
		stream.Event("result", res)
	}
}

func providerParam(w http.ResponseWriter, r *http.Request, svc AISettingsReader) (models.AIProvider, bool) {
	id := chi.URLParam(r, "id")
	if _, ok := provider.Lookup(id); !ok {
		response.Error(w, http.StatusNotFound, "PROVIDER_NOT_FOUND", "Unknown provider "+id, nil)
		return models.AIProvider{}, false
	}
	s, err := svc.AI(r.Context())
	if err != nil {
		internalError(w, "load ai settings", err)
		return models.AIProvider{}, false
	}
	return configured(s, id), true
}

// configured returns the user's row for id, or a bare row when the user
// never configured it.
func configured(s models.AISettings, id string) models.AIProvider {
	if p, ok := s.Provider(id); ok {
		return p
	}
	spec, _ := provider.Lookup(id)
	return models.AIProvider{ID: id, Name: spec.Name}
}
