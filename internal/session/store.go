// Package session keeps each session's analysis list in the cache. Records
// expire with the session and are never written to the database.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/citadel/internal/cache"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

var ErrNotFound = errors.New("analysis not found")

// Store reads and writes analysis records scoped to a session id.
type Store struct {
	cache cache.Cache
	ttl   time.Duration

	// mu serialises index updates within this process.
	mu sync.Mutex
}

// NewStore creates a Store whose records live for ttl after their last write.
func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// Save inserts or replaces a record and refreshes the session's lifetime.
func (s *Store) Save(ctx context.Context, sessionID string, a *models.LogAnalysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.Set(ctx, cache.AnalysisKey(sessionID, a.ID), data, s.ttl); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}

	ids, err := s.index(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == a.ID {
			return s.writeIndex(ctx, sessionID, ids)
		}
	}
	return s.writeIndex(ctx, sessionID, append(ids, a.ID))
}

// Update replaces a record that is still in the session's list. It returns
// ErrNotFound once the record was deleted, so a late writer cannot bring it
// back.
func (s *Store) Update(ctx context.Context, sessionID string, a *models.LogAnalysis) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.index(ctx, sessionID)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, a.ID) {
		return ErrNotFound
	}
	if err := s.cache.Set(ctx, cache.AnalysisKey(sessionID, a.ID), data, s.ttl); err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	return s.writeIndex(ctx, sessionID, ids)
}

// Get returns one record of the session.
func (s *Store) Get(ctx context.Context, sessionID string, id uuid.UUID) (*models.LogAnalysis, error) {
	data, found, err := s.cache.Get(ctx, cache.AnalysisKey(sessionID, id))
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	var a models.LogAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return &a, nil
}

// List returns the session's records, newest upload first. Records that
// expired independently of the index are skipped.
func (s *Store) List(ctx context.Context, sessionID string) ([]*models.LogAnalysis, error) {
	s.mu.Lock()
	ids, err := s.index(ctx, sessionID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]*models.LogAnalysis, 0, len(ids))
	for _, id := range ids {
		a, err := s.Get(ctx, sessionID, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

// Delete removes a record. It is the only way a record leaves the list
// before the session expires.
func (s *Store) Delete(ctx context.Context, sessionID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.index(ctx, sessionID)
	if err != nil {
		return err
	}
	kept := ids[:0]
	removed := false
	for _, existing := range ids {
		if existing == id {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return ErrNotFound
	}

	if err := s.cache.Delete(ctx, cache.AnalysisKey(sessionID, id)); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return s.writeIndex(ctx, sessionID, kept)
}

func (s *Store) index(ctx context.Context, sessionID string) ([]uuid.UUID, error) {
	data, found, err := s.cache.Get(ctx, cache.SessionIndexKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load session index: %w", err)
	}
	if !found {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode session index: %w", err)
	}
	return ids, nil
}

func (s *Store) writeIndex(ctx context.Context, sessionID string, ids []uuid.UUID) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode session index: %w", err)
	}
	if err := s.cache.Set(ctx, cache.SessionIndexKey(sessionID), data, s.ttl); err != nil {
		return fmt.Errorf("store session index: %w", err)
	}
	return nil
}
