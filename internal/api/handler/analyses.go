package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/analysis"
	mw "github.com/kiranshivaraju/citadel/internal/api/middleware"
	"github.com/kiranshivaraju/citadel/internal/api/response"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/internal/report"
	"github.com/kiranshivaraju/citadel/internal/session"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	// multipart framing allowance on top of the file itself
	uploadOverhead = 1 << 20
	pingInterval   = 15 * time.Second
)

// Submitter starts a background analysis.
type Submitter interface {
	Submit(ctx context.Context, sessionID, fileName, content string) (*models.LogAnalysis, error)
}

// AnalysisRepository reads and deletes a session's analyses.
type AnalysisRepository interface {
	Get(ctx context.Context, sessionID string, id uuid.UUID) (*models.LogAnalysis, error)
	List(ctx context.Context, sessionID string) ([]*models.LogAnalysis, error)
	Delete(ctx context.Context, sessionID string, id uuid.UUID) error
}

// EventSource delivers published events for one topic.
type EventSource interface {
	SubscribeTopic(ctx context.Context, topic string, buffer int) <-chan eventbus.Event
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/analyses.
func NewUploadHandler(svc Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := mw.GetSessionID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "MISSING_SESSION", "Missing session", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, analysis.MaxFileSize+uploadOverhead)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusBadRequest, "INVALID_FILE", analysis.ErrTooLarge.Error(), nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Multipart form with a file field is required", nil)
			return
		}
		defer file.Close()

		if err := analysis.Validate(header.Filename, header.Header.Get("Content-Type"), header.Size); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_FILE", err.Error(), nil)
			return
		}
		content, err := analysis.ReadLimited(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_FILE", err.Error(), nil)
			return
		}

		rec, err := svc.Submit(r.Context(), sessionID, header.Filename, content)
		if err != nil {
			writeAIError(w, err)
			return
		}
		response.Accepted(w, rec)
	}
}

// NewListAnalysesHandler returns an http.HandlerFunc for GET /api/v1/analyses.
// Results are newest first and paginated with page and limit.
func NewListAnalysesHandler(repo AnalysisRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := mw.GetSessionID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "MISSING_SESSION", "Missing session", nil)
			return
		}

		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", defaultListLimit)
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = defaultListLimit
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}

		all, err := repo.List(r.Context(), sessionID)
		if err != nil {
			internalError(w, "list analyses", err)
			return
		}

		start := (page - 1) * limit
		if start > len(all) {
			start = len(all)
		}
		end := start + limit
		if end > len(all) {
			end = len(all)
		}

		response.Collection(w, all[start:end], response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   len(all),
			HasNext: end < len(all),
		})
	}
}

// NewGetAnalysisHandler returns an http.HandlerFunc for GET /api/v1/analyses/{id}.
func NewGetAnalysisHandler(repo AnalysisRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := loadAnalysis(w, r, repo)
		if !ok {
			return
		}
		response.JSON(w, rec)
	}
}

// NewDeleteAnalysisHandler returns an http.HandlerFunc for DELETE /api/v1/analyses/{id}.
func NewDeleteAnalysisHandler(repo AnalysisRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, id, ok := analysisParams(w, r)
		if !ok {
			return
		}
		err := repo.Delete(r.Context(), sessionID, id)
		if errors.Is(err, session.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Analysis not found", nil)
			return
		}
		if err != nil {
			internalError(w, "delete analysis", err)
			return
		}
		response.NoContent(w)
	}
}

// NewAnalysisEventsHandler returns an http.HandlerFunc for
// GET /api/v1/analyses/{id}/events. It streams progress until the analysis
// completes or fails. A finished analysis gets its final event immediately.
func NewAnalysisEventsHandler(repo AnalysisRepository, events EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, id, ok := analysisParams(w, r)
		if !ok {
			return
		}

		// Subscribe before reading the record so a completion in between is not lost.
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sub := events.SubscribeTopic(ctx, ai.AnalysisTopic(id), 64)

		rec, err := repo.Get(ctx, sessionID, id)
		if errors.Is(err, session.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Analysis not found", nil)
			return
		}
		if err != nil {
			internalError(w, "load analysis", err)
			return
		}

		stream, ok := response.NewStream(w)
		if !ok {
			return
		}
		if rec.Terminal() {
			writeFinal(stream, rec)
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
				if evt.Type == ai.EventCompleted || evt.Type == ai.EventError {
					return
				}
			}
		}
	}
}

func writeFinal(stream *response.Stream, rec *models.LogAnalysis) {
	if rec.Status == models.AnalysisStatusCompleted {
		stream.Event(ai.EventCompleted, rec)
		return
	}
	stream.Event(ai.EventError, map[string]any{"message": rec.Error, "analysis": rec})
}

// NewExportHandler returns an http.HandlerFunc for
// GET /api/v1/analyses/{id}/export?format=json|txt.
func NewExportHandler(repo AnalysisRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = report.FormatJSON
		}
		if format != report.FormatJSON && format != report.FormatTXT {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "format must be json or txt", nil)
			return
		}

		rec, ok := loadAnalysis(w, r, repo)
		if !ok {
			return
		}
		if rec.Status != models.AnalysisStatusCompleted {
			response.Error(w, http.StatusConflict, "NOT_COMPLETED", "Only completed analyses can be exported", nil)
			return
		}

		body, contentType, err := report.Render(rec, format)
		if err != nil {
			internalError(w, "render export", err)
			return
		}
		response.Attachment(w, report.FileName(rec.FileName, format), contentType, body)
	}
}

func loadAnalysis(w http.ResponseWriter, r *http.Request, repo AnalysisRepository) (*models.LogAnalysis, bool) {
	sessionID, id, ok := analysisParams(w, r)
	if !ok {
		return nil, false
	}
	rec, err := repo.Get(r.Context(), sessionID, id)
	if errors.Is(err, session.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Analysis not found", nil)
		return nil, false
	}
	if err != nil {
		internalError(w, "load analysis", err)
		return nil, false
	}
	return rec, true
}

func analysisParams(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	sessionID, ok := mw.GetSessionID(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "MISSING_SESSION", "Missing session", nil)
		return "", uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a UUID", nil)
		return "", uuid.Nil, false
	}
	return sessionID, id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
