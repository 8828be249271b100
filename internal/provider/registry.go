// Package provider holds the static table of known AI providers and the
// rules for choosing which configured provider is active.
package provider

import (
	"strings"

	"github.com/kiranshivaraju/citadel/pkg/models"
)

// LocalID is the identifier of the local inference provider.
const LocalID = "ollama"

// Kind separates the two provider contracts.
type Kind int

const (
	KindCloud Kind = iota
	KindLocal
)

func (k Kind) String() string {
	if k == KindLocal {
		return "local"
	}
	return "cloud"
}

// Auth is how requests to a provider are authenticated.
type Auth int

const (
	AuthNone Auth = iota
	AuthBearer
)

// Spec describes how to talk to one provider.
type Spec struct {
	ID             string
	Name           string
	Kind           Kind
	Auth           Auth
	DefaultBaseURL string
	DefaultModel   string
	// Paths are relative to the resolved base URL.
	LivenessPath string
	ModelsPath   string
	PullPath     string
	ChatPath     string
	// LivenessMarker must appear in the liveness response body.
	LivenessMarker string
	// Temperature is sent with analysis requests when non-nil.
	Temperature *float64
	// ProxyPrefix is the development proxy mount point.
	ProxyPrefix string
}

// Local reports whether the provider is the same-machine inference server.
func (s Spec) Local() bool { return s.Kind == KindLocal }

var cloudTemperature = 0.3

var registry = []Spec{
	{
		ID:             "nvidia",
		Name:           "NVIDIA NIM",
		Kind:           KindCloud,
		Auth:           AuthBearer,
		DefaultBaseURL: "https://integrate.api.nvidia.com/v1",
		DefaultModel:   "moonshotai/kimi-k2.5",
		ModelsPath:     "/models",
		ChatPath:       "/chat/completions",
		Temperature:    &cloudTemperature,
		ProxyPrefix:    "/nvidia-api",
	},
	{
		ID:             "openai",
		Name:           "OpenAI",
		Kind:           KindCloud,
		Auth:           AuthBearer,
		DefaultBaseURL: "https://api.openai.com/v1",
		DefaultModel:   "gpt-4o",
		ModelsPath:     "/models",
		ChatPath:       "/chat/completions",
		Temperature:    &cloudTemperature,
		ProxyPrefix:    "/openai-api",
	},
	{
		ID:             "grok",
		Name:           "Grok (xAI)",
		Kind:           KindCloud,
		Auth:           AuthBearer,
		DefaultBaseURL: "https://api.x.ai/v1",
		DefaultModel:   "grok-beta",
		ModelsPath:     "/models",
		ChatPath:       "/chat/completions",
		Temperature:    &cloudTemperature,
		ProxyPrefix:    "/grok-api",
	},
	{
		ID:             "deepseek",
		Name:           "DeepSeek",
		Kind:           KindCloud,
		Auth:           AuthBearer,
		DefaultBaseURL: "https://api.deepseek.com/v1",
		DefaultModel:   "deepseek-chat",
		ModelsPath:     "/models",
		ChatPath:       "/chat/completions",
		Temperature:    &cloudTemperature,
		ProxyPrefix:    "/deepseek-api",
	},
	{
		ID:             LocalID,
		Name:           "Ollama (Local)",
		Kind:           KindLocal,
		Auth:           AuthNone,
		DefaultBaseURL: "http://localhost:11434",
		DefaultModel:   "llama3.2",
		LivenessPath:   "/",
		ModelsPath:     "/api/tags",
		PullPath:       "/api/pull",
		ChatPath:       "/v1/chat/completions",
		LivenessMarker: "Ollama is running",
		ProxyPrefix:    "/ollama-api",
	},
}

// All returns every registered provider in display order.
func All() []Spec {
	out := make([]Spec, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the spec registered under id.
func Lookup(id string) (Spec, bool) {
	for _, s := range registry {
		if s.ID == id {
			return s, true
		}
	}
	return Spec{}, false
}

// IsLocal reports whether id names the local inference provider.
func IsLocal(id string) bool {
	s, ok := Lookup(id)
	return ok && s.Local()
}

// DefaultSettings is used whenever no settings have been stored yet.
func DefaultSettings() models.AISettings {
	providers := make([]models.AIProvider, 0, len(registry))
	for _, s := range registry {
		p := models.AIProvider{ID: s.ID, Name: s.Name}
		switch s.ID {
		case "nvidia":
			p.Enabled = true
			p.BaseURL = s.DefaultBaseURL
			p.Model = s.DefaultModel
		case "deepseek":
			p.BaseURL = s.DefaultBaseURL
			p.Model = s.DefaultModel
		case LocalID:
			p.BaseURL = s.DefaultBaseURL
			p.Model = "gpt-oss:20b"
		default:
			p.Model = s.DefaultModel
		}
		providers = append(providers, p)
	}
	return models.AISettings{Providers: providers, SelectedProvider: "nvidia"}
}

// Usable reports whether p may be used for analysis: it must be enabled and
// either carry an API key or be the local provider.
func Usable(p models.AIProvider) bool {
	if !p.Enabled {
		return false
	}
	return strings.TrimSpace(p.APIKey) != "" || IsLocal(p.ID)
}

// Active returns the selected provider when it exists and is usable.
func Active(s models.AISettings) (models.AIProvider, bool) {
	if s.SelectedProvider == "" {
		return models.AIProvider{}, false
	}
	p, ok := s.Provider(s.SelectedProvider)
	if !ok || !Usable(p) {
		return models.AIProvider{}, false
	}
	return p, true
}

// BaseURL returns the provider's base URL override or the registry default,
// without a trailing slash.
func BaseURL(p models.AIProvider) string {
	base := p.BaseURL
	if base == "" {
		if s, ok := Lookup(p.ID); ok {
			base = s.DefaultBaseURL
		}
	}
	return strings.TrimRight(base, "/")
}

// Model returns the provider's model override or the registry default.
func Model(p models.AIProvider) string {
	if p.Model != "" {
		return p.Model
	}
	if s, ok := Lookup(p.ID); ok {
		return s.DefaultModel
	}
	return ""
}

// DisplayName returns the configured name, falling back to the registry name.
func DisplayName(p models.AIProvider) string {
	if p.Name != "" {
		return p.Name
	}
	if s, ok := Lookup(p.ID); ok {
		return s.Name
	}
	return p.ID
}
