package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/internal/session"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// Event types published for an analysis.
const (
	EventProgress  = "progress"
	EventCompleted = "completed"
	EventError     = "error"
)

// SettingsSource supplies the current provider settings.
type SettingsSource interface {
	AI(ctx context.Context) (models.AISettings, error)
}

// Repository stores a session's analysis records. Update must return
// session.ErrNotFound for a record that is no longer listed.
type Repository interface {
	Save(ctx context.Context, sessionID string, a *models.LogAnalysis) error
	Update(ctx context.Context, sessionID string, a *models.LogAnalysis) error
}

// AnalysisService runs uploaded logs through the Analyzer in the background,
// one at a time per session, and records the outcome.
type AnalysisService struct {
	analyzer *Analyzer
	settings SettingsSource
	repo     Repository
	events   *eventbus.Hub
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]uuid.UUID
	wg       sync.WaitGroup
}

// NewAnalysisService creates an AnalysisService. events may be nil.
func NewAnalysisService(analyzer *Analyzer, settings SettingsSource, repo Repository, events *eventbus.Hub) *AnalysisService {
	return &AnalysisService{
		analyzer: analyzer,
		settings: settings,
		repo:     repo,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]uuid.UUID),
	}
}

// AnalysisTopic is the event topic carrying updates for one analysis.
func AnalysisTopic(id uuid.UUID) string {
	return fmt.Sprintf("analysis:%s", id)
}

// Submit records a new analysis and starts it in the background. It fails
// before recording anything when no usable provider is selected or when the
// session already has an analysis running.
func (s *AnalysisService) Submit(ctx context.Context, sessionID, fileName, content string) (*models.LogAnalysis, error) {
	settings, err := s.settings.AI(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ai settings: %w", err)
	}
	p, ok := provider.Active(settings)
	if !ok {
		return nil, configError()
	}

	id := uuid.New()
	if !s.claim(sessionID, id) {
		return nil, busyError()
	}

	record := &models.LogAnalysis{
		ID:         id,
		FileName:   fileName,
		UploadedAt: s.now(),
		Status:     models.AnalysisStatusAnalyzing,
		RawContent: content,
		Provider:   provider.DisplayName(p),
	}
	if err := s.repo.Save(ctx, sessionID, record); err != nil {
		s.release(sessionID)
		return nil, fmt.Errorf("saving analysis: %w", err)
	}

	snapshot := *record
	s.wg.Add(1)
	go s.run(sessionID, record, p)

	return &snapshot, nil
}

// Busy reports whether sessionID has an analysis running.
func (s *AnalysisService) Busy(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[sessionID]
	return ok
}

// Wait blocks until every background analysis has finished.
func (s *AnalysisService) Wait() {
	s.wg.Wait()
}

// Analyzer returns the underlying pipeline.
func (s *AnalysisService) Analyzer() *Analyzer { return s.analyzer }

func (s *AnalysisService) claim(sessionID string, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[sessionID]; busy {
		return false
	}
	s.inflight[sessionID] = id
	return true
}

func (s *AnalysisService) release(sessionID string) {
	s.mu.Lock()
	delete(s.inflight, sessionID)
	s.mu.Unlock()
}

// run performs the analysis and always leaves the record completed or failed.
func (s *AnalysisService) run(sessionID string, record *models.LogAnalysis, p models.AIProvider) {
	defer s.wg.Done()
	defer s.release(sessionID)

	ctx := context.Background()
	topic := AnalysisTopic(record.ID)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in analysis", "error", r, "analysis_id", record.ID)
			s.finish(ctx, sessionID, record, fmt.Errorf("panic: %v", r))
		}
	}()

	slog.Info("analysis started", "analysis_id", record.ID, "session_id", sessionID, "provider", p.ID, "file", record.FileName)

	result, err := s.analyzer.Analyze(ctx, p, record.RawContent, func(pr models.Progress) {
		s.events.Publish(eventbus.Event{Type: EventProgress, Topic: topic, Data: pr})
	})
	if err != nil {
		s.finish(ctx, sessionID, record, err)
		return
	}

	record.Complete(result, s.now())
	s.record(ctx, sessionID, record)
	slog.Info("analysis completed", "analysis_id", record.ID)
	s.events.Publish(eventbus.Event{Type: EventCompleted, Topic: topic, Data: *record})
}

func (s *AnalysisService) finish(ctx context.Context, sessionID string, record *models.LogAnalysis, err error) {
	record.Fail(err.Error(), s.now())
	s.record(ctx, sessionID, record)
	slog.Warn("analysis failed", "analysis_id", record.ID, "class", Classify(err), "error", err)
	s.events.Publish(eventbus.Event{
		Type:  EventError,
		Topic: AnalysisTopic(record.ID),
		Data:  map[string]any{"message": err.Error(), "analysis": *record},
	})
}

// record stores a terminal outcome. A record deleted while it was running
// stays deleted; its outcome is only published to listeners.
func (s *AnalysisService) record(ctx context.Context, sessionID string, a *models.LogAnalysis) {
	err := s.repo.Update(ctx, sessionID, a)
	switch {
	case errors.Is(err, session.ErrNotFound):
		slog.Info("analysis deleted while running, outcome dropped", "analysis_id", a.ID, "status", a.Status)
	case err != nil:
		slog.Error("saving analysis outcome", "analysis_id", a.ID, "status", a.Status, "error", err)
	}
}
