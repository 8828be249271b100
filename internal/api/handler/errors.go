package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/api/response"
)

// writeAIError maps a pipeline error onto an HTTP error response.
func writeAIError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var aerr *ai.Error
	if errors.As(err, &aerr) {
		msg = aerr.Message
	}

	switch {
	case errors.Is(err, ai.ErrAnalysisInProgress):
		response.Error(w, http.StatusConflict, "ANALYSIS_IN_PROGRESS", msg, nil)
		return
	case errors.Is(err, ai.ErrUnknownProvider):
		response.Error(w, http.StatusNotFound, "PROVIDER_NOT_FOUND", msg, nil)
		return
	}

	switch ai.Classify(err) {
	case ai.ClassConfiguration:
		response.Error(w, http.StatusUnprocessableEntity, "NO_PROVIDER", msg, nil)
	case ai.ClassConnectivity:
		response.Error(w, http.StatusBadGateway, "PROVIDER_UNREACHABLE", msg, nil)
	case ai.ClassProtocol:
		response.Error(w, http.StatusBadGateway, "PROVIDER_ERROR", msg, nil)
	case ai.ClassPolicy:
		response.Error(w, http.StatusForbidden, "CLOUD_BLOCKED", msg, nil)
	default:
		slog.Error("request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

func internalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
}
