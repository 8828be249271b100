package ai_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/citadel/internal/ai"
	"github.com/kiranshivaraju/citadel/internal/ai/mock"
	"github.com/kiranshivaraju/citadel/internal/cache"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/internal/session"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSettings struct {
	settings models.AISettings
}

func (s staticSettings) AI(context.Context) (models.AISettings, error) { return s.settings, nil }

type memoryRepo struct {
	mu    sync.Mutex
	saved map[string]models.LogAnalysis
	saves int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{saved: make(map[string]models.LogAnalysis)}
}

func (r *memoryRepo) Save(_ context.Context, _ string, a *models.LogAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[a.ID.String()] = *a
	r.saves++
	return nil
}

func (r *memoryRepo) Update(_ context.Context, _ string, a *models.LogAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.saved[a.ID.String()]; !ok {
		return session.ErrNotFound
	}
	r.saved[a.ID.String()] = *a
	r.saves++
	return nil
}

func (r *memoryRepo) get(id string) models.LogAnalysis {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved[id]
}

func selected(p models.AIProvider) models.AISettings {
	return models.AISettings{Providers: []models.AIProvider{p}, SelectedProvider: p.ID}
}

func TestAnalysisService_CompletesRecord(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2"), mock.WithChatReply(scenarioReply))
	defer srv.Close()

	hub := eventbus.NewHub()
	repo := newMemoryRepo()
	svc := ai.NewAnalysisService(ai.NewAnalyzer(testOptions()), staticSettings{selected(localProvider(srv.URL))}, repo, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := hub.Subscribe(ctx, 256)

	rec, err := svc.Submit(context.Background(), "s1", "router.log", "ERROR link down")
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusAnalyzing, rec.Status)
	assert.Equal(t, "Ollama (Local)", rec.Provider)

	svc.Wait()
	assert.False(t, svc.Busy("s1"))

	got := repo.get(rec.ID.String())
	assert.Equal(t, models.AnalysisStatusCompleted, got.Status)
	assert.Equal(t, "ok", got.Summary)
	assert.Equal(t, &models.SeverityBreakdown{Critical: 1, Info: 2, Success: 5}, got.SeverityBreakdown)
	assert.Equal(t, []string{"x"}, got.Insights)
	assert.Equal(t, []string{"y"}, got.Recommendations)
	assert.NotNil(t, got.CompletedAt)

	var last eventbus.Event
	timeout := time.After(time.Second)
	for last.Type != ai.EventCompleted {
		select {
		case last = <-events:
			assert.Equal(t, ai.AnalysisTopic(rec.ID), last.Topic)
		case <-timeout:
			t.Fatal("no completed event")
		}
	}
}

func TestAnalysisService_FailureRecorded(t *testing.T) {
	srv := mock.NewCloudServer(mock.WithAPIKey("sk-test"))
	defer srv.Close()

	repo := newMemoryRepo()
	svc := ai.NewAnalysisService(ai.NewAnalyzer(testOptions()), staticSettings{selected(cloudProvider(srv.URL))}, repo, nil)

	rec, err := svc.Submit(context.Background(), "s1", "a.log", "log")
	require.NoError(t, err)
	svc.Wait()

	got := repo.get(rec.ID.String())
	assert.Equal(t, models.AnalysisStatusError, got.Status)
	assert.Contains(t, got.Error, "CORS")
	assert.Empty(t, got.Summary)
	assert.Equal(t, 0, srv.Calls("/chat/completions"))
}

func TestAnalysisService_NoProvider(t *testing.T) {
	repo := newMemoryRepo()
	svc := ai.NewAnalysisService(ai.NewAnalyzer(testOptions()), staticSettings{}, repo, nil)

	_, err := svc.Submit(context.Background(), "s1", "a.log", "log")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrNoActiveProvider)
	assert.Equal(t, 0, repo.saves)
}

func TestAnalysisService_OnePerSession(t *testing.T) {
	release := make(chan struct{})
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2"), mock.WithChatReply(scenarioReply))
	defer srv.Close()

	// The first run cannot record its outcome until release is closed.
	blocking := &blockingRepo{memoryRepo: newMemoryRepo(), release: release}
	svc := ai.NewAnalysisService(ai.NewAnalyzer(testOptions()), staticSettings{selected(localProvider(srv.URL))}, blocking, nil)

	_, err := svc.Submit(context.Background(), "s1", "a.log", "log")
	require.NoError(t, err)
	assert.True(t, svc.Busy("s1"))

	_, err = svc.Submit(context.Background(), "s1", "b.log", "log")
	assert.ErrorIs(t, err, ai.ErrAnalysisInProgress)

	_, err = svc.Submit(context.Background(), "s2", "c.log", "log")
	assert.NoError(t, err)

	close(release)
	svc.Wait()
	assert.False(t, svc.Busy("s1"))
}

// blockingRepo lets the initial save through and holds the outcome until
// release is closed.
type blockingRepo struct {
	*memoryRepo
	release chan struct{}
}

func (r *blockingRepo) Update(ctx context.Context, sessionID string, a *models.LogAnalysis) error {
	<-r.release
	return r.memoryRepo.Update(ctx, sessionID, a)
}

func TestAnalysisService_DeletedWhileRunningStaysDeleted(t *testing.T) {
	release := make(chan struct{})
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2"), mock.WithChatReply(scenarioReply))
	defer srv.Close()

	sessions := session.NewStore(cache.NewMemoryCache(), time.Hour)
	repo := &heldSessionRepo{Store: sessions, release: release}
	svc := ai.NewAnalysisService(ai.NewAnalyzer(testOptions()), staticSettings{selected(localProvider(srv.URL))}, repo, nil)

	ctx := context.Background()
	rec, err := svc.Submit(ctx, "s1", "a.log", "log")
	require.NoError(t, err)

	require.NoError(t, sessions.Delete(ctx, "s1", rec.ID))
	close(release)
	svc.Wait()

	list, err := sessions.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = sessions.Get(ctx, "s1", rec.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

// heldSessionRepo is a real session store whose outcome write waits for
// release.
type heldSessionRepo struct {
	*session.Store
	release chan struct{}
}

func (r *heldSessionRepo) Update(ctx context.Context, sessionID string, a *models.LogAnalysis) error {
	<-r.release
	return r.Store.Update(ctx, sessionID, a)
}
