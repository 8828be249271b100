package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kiranshivaraju/citadel/internal/api/response"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/internal/settings"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// SettingsService reads and writes user preferences.
type SettingsService interface {
	AI(ctx context.Context) (models.AISettings, error)
	SaveAI(ctx context.Context, in models.AISettings) (models.AISettings, error)
	Dashboard(ctx context.Context) (models.DashboardSettings, error)
	SaveDashboard(ctx context.Context, in models.DashboardSettings) (models.DashboardSettings, error)
	Subscribe(ctx context.Context) <-chan eventbus.Event
}

// NewGetAISettingsHandler returns an http.HandlerFunc for GET /api/v1/settings/ai.
// API keys are masked.
func NewGetAISettingsHandler(svc SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := svc.AI(r.Context())
		if err != nil {
			internalError(w, "load ai settings", err)
			return
		}
		response.JSON(w, settings.Mask(s))
	}
}

// NewPutAISettingsHandler returns an http.HandlerFunc for PUT /api/v1/settings/ai.
func NewPutAISettingsHandler(svc SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AISettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		details := map[string]string{}
		if req.SelectedProvider != "" {
			if _, ok := provider.Lookup(req.SelectedProvider); !ok {
				details["selectedProvider"] = "unknown provider " + req.SelectedProvider
			}
		}
		seen := map[string]bool{}
		for _, p := range req.Providers {
			if _, ok := provider.Lookup(p.ID); !ok {
				details["providers"] = "unknown provider " + p.ID
			}
			if seen[p.ID] {
				details["providers"] = "duplicate provider " + p.ID
			}
			seen[p.ID] = true
		}
		if len(details) > 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid settings", details)
			return
		}

		saved, err := svc.SaveAI(r.Context(), req)
		if err != nil {
			internalError(w, "save ai settings", err)
			return
		}
		response.JSON(w, settings.Mask(saved))
	}
}

// NewGetDashboardSettingsHandler returns an http.HandlerFunc for GET /api/v1/settings/dashboard.
func NewGetDashboardSettingsHandler(svc SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.Dashboard(r.Context())
		if err != nil {
			internalError(w, "load dashboard settings", err)
			return
		}
		response.JSON(w, d)
	}
}

// NewPutDashboardSettingsHandler returns an http.HandlerFunc for PUT /api/v1/settings/dashboard.
func NewPutDashboardSettingsHandler(svc SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.DashboardSettings
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		saved, err := svc.SaveDashboard(r.Context(), req)
		if err != nil {
			internalError(w, "save dashboard settings", err)
			return
		}
		response.JSON(w, saved)
	}
}

// NewSettingsEventsHandler returns an http.HandlerFunc for
// GET /api/v1/settings/events, a stream of settings changes.
func NewSettingsEventsHandler(svc SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := svc.Subscribe(ctx)

		stream, ok := response.NewStream(w)
		if !ok {
			return
		}
		if stream.Event("ready", struct{}{}) != nil {
			return
		}

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if stream.Ping() != nil {
					return
				}
			case evt, ok := <-sub:
				if !ok {
					return
				}
				if stream.Event(evt.Type, evt.Data) != nil {
					return
				}
			}
		}
	}
}
