// Package settings reads and writes the user's AI provider and dashboard
// preferences and broadcasts every change.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kiranshivaraju/citadel/internal/cache"
	"github.com/kiranshivaraju/citadel/internal/eventbus"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/internal/store"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// Storage keys.
const (
	AIKey        = "citadel-ai-settings"
	DashboardKey = "citadel-dashboard-settings"
)

// Topic is the event hub topic carrying settings changes.
const Topic = "settings"

// EventChanged is the event type of a settings change.
const EventChanged = "settings"

// maskPrefix replaces all but the last four characters of an API key.
const maskPrefix = "••••"

// Change is one broadcast settings write. Value never carries a full API key.
type Change struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Service is the settings store. Reads happen at request time and fall back
// to the defaults when nothing usable is stored. Writes are last-write-wins.
type Service struct {
	store store.Store
	cache cache.Cache
	hub   *eventbus.Hub
}

// NewService creates a Service. hub may be nil.
func NewService(s store.Store, c cache.Cache, hub *eventbus.Hub) *Service {
	return &Service{store: s, cache: c, hub: hub}
}

// AI returns the stored provider settings with full API keys.
func (s *Service) AI(ctx context.Context) (models.AISettings, error) {
	var out models.AISettings
	ok, err := s.load(ctx, AIKey, &out)
	if err != nil {
		return models.AISettings{}, err
	}
	if !ok {
		return provider.DefaultSettings(), nil
	}
	return out, nil
}

// SaveAI stores in. A provider whose API key is still masked keeps the key
// already stored for it. The stored settings are returned.
func (s *Service) SaveAI(ctx context.Context, in models.AISettings) (models.AISettings, error) {
	current, err := s.AI(ctx)
	if err != nil {
		return models.AISettings{}, err
	}

	merged := models.AISettings{SelectedProvider: in.SelectedProvider}
	for _, p := range in.Providers {
		if IsMasked(p.APIKey) {
			prev, _ := current.Provider(p.ID)
			p.APIKey = prev.APIKey
		}
		merged.Providers = append(merged.Providers, p)
	}

	if err := s.save(ctx, AIKey, merged, Mask(merged)); err != nil {
		return models.AISettings{}, err
	}
	return merged, nil
}

// Dashboard returns the stored dashboard flags.
func (s *Service) Dashboard(ctx context.Context) (models.DashboardSettings, error) {
	var out models.DashboardSettings
	ok, err := s.load(ctx, DashboardKey, &out)
	if err != nil {
		return models.DashboardSettings{}, err
	}
	if !ok {
		return models.DefaultDashboardSettings(), nil
	}
	out.ShowLogStream = true
	return out, nil
}

// SaveDashboard stores in. The log stream cannot be hidden.
func (s *Service) SaveDashboard(ctx context.Context, in models.DashboardSettings) (models.DashboardSettings, error) {
	in.ShowLogStream = true
	if err := s.save(ctx, DashboardKey, in, in); err != nil {
		return models.DashboardSettings{}, err
	}
	return in, nil
}

// Subscribe receives settings change events until ctx is done.
func (s *Service) Subscribe(ctx context.Context) <-chan eventbus.Event {
	return s.hub.SubscribeTopic(ctx, Topic, 16)
}

// Run relays changes published by any instance to the local event hub until
// ctx is done.
func (s *Service) Run(ctx context.Context) error {
	msgs, err := s.cache.Subscribe(ctx, cache.SettingsChannel)
	if err != nil {
		return fmt.Errorf("subscribe to settings channel: %w", err)
	}
	for payload := range msgs {
		var c Change
		if err := json.Unmarshal(payload, &c); err != nil {
			slog.Warn("dropping malformed settings change", "error", err)
			continue
		}
		s.hub.Publish(eventbus.Event{Type: EventChanged, Topic: Topic, Data: c})
	}
	return nil
}

func (s *Service) load(ctx context.Context, key string, dst any) (bool, error) {
	data, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("stored settings unreadable, using defaults", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *Service) save(ctx context.Context, key string, value, public any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.PutSetting(ctx, key, data); err != nil {
		return err
	}

	pub, err := json.Marshal(public)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	change, _ := json.Marshal(Change{Key: key, Value: pub})
	if err := s.cache.Publish(ctx, cache.SettingsChannel, change); err != nil {
		// The write already happened. Other sessions see it on their next read.
		slog.Warn("settings broadcast failed", "key", key, "error", err)
	}
	return nil
}

// Mask returns a copy of in whose API keys show only their last four characters.
func Mask(in models.AISettings) models.AISettings {
	out := models.AISettings{SelectedProvider: in.SelectedProvider}
	for _, p := range in.Providers {
		p.APIKey = MaskKey(p.APIKey)
		out.Providers = append(out.Providers, p)
	}
	return out
}

// MaskKey hides all but the last four characters of key.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	r := []rune(key)
	if len(r) <= 4 {
		return maskPrefix
	}
	return maskPrefix + string(r[len(r)-4:])
}

// IsMasked reports whether key is a value produced by MaskKey.
func IsMasked(key string) bool {
	return strings.HasPrefix(key, maskPrefix)
}
