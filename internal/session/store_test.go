package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/citadel/internal/cache"
	"github.com/kiranshivaraju/citadel/internal/session"
	"github.com/kiranshivaraju/citadel/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(name string, uploaded time.Time) *models.LogAnalysis {
	return &models.LogAnalysis{
		ID:         uuid.New(),
		FileName:   name,
		UploadedAt: uploaded,
		Status:     models.AnalysisStatusAnalyzing,
		Provider:   "Ollama (Local)",
	}
}

func TestStore_SaveGet(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	a := record("a.log", time.Now())
	require.NoError(t, s.Save(ctx, "s1", a))

	got, err := s.Get(ctx, "s1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.log", got.FileName)
	assert.Equal(t, models.AnalysisStatusAnalyzing, got.Status)

	_, err = s.Get(ctx, "s2", a.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestStore_SaveReplacesRecord(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	a := record("a.log", time.Now())
	require.NoError(t, s.Save(ctx, "s1", a))
	a.Complete(models.AnalysisResult{Summary: "ok"}, time.Now())
	require.NoError(t, s.Save(ctx, "s1", a))

	list, err := s.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.AnalysisStatusCompleted, list[0].Status)
	assert.Equal(t, "ok", list[0].Summary)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := record("older.log", base)
	newer := record("newer.log", base.Add(time.Minute))
	require.NoError(t, s.Save(ctx, "s1", older))
	require.NoError(t, s.Save(ctx, "s1", newer))
	require.NoError(t, s.Save(ctx, "s2", record("other.log", base)))

	list, err := s.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer.log", list[0].FileName)
	assert.Equal(t, "older.log", list[1].FileName)
}

func TestStore_ListEmptySession(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	list, err := s.List(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_Delete(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	a := record("a.log", time.Now())
	b := record("b.log", time.Now())
	require.NoError(t, s.Save(ctx, "s1", a))
	require.NoError(t, s.Save(ctx, "s1", b))

	require.NoError(t, s.Delete(ctx, "s1", a.ID))
	_, err := s.Get(ctx, "s1", a.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	list, err := s.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	assert.ErrorIs(t, s.Delete(ctx, "s1", a.ID), session.ErrNotFound)
}

func TestStore_RecordsExpireWithSession(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "s1", record("a.log", time.Now())))
	time.Sleep(100 * time.Millisecond)

	list, err := s.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_UpdateExistingRecord(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	a := record("a.log", time.Now())
	require.NoError(t, s.Save(ctx, "s1", a))
	a.Fail("boom", time.Now())
	require.NoError(t, s.Update(ctx, "s1", a))

	got, err := s.Get(ctx, "s1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisStatusError, got.Status)
}

func TestStore_UpdateAfterDeleteDoesNotRestore(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	a := record("a.log", time.Now())
	require.NoError(t, s.Save(ctx, "s1", a))
	require.NoError(t, s.Delete(ctx, "s1", a.ID))

	a.Complete(models.AnalysisResult{Summary: "ok"}, time.Now())
	assert.ErrorIs(t, s.Update(ctx, "s1", a), session.ErrNotFound)

	list, err := s.List(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = s.Get(ctx, "s1", a.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}
