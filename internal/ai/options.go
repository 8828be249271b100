package ai

import (
	"time"

	"github.com/kiranshivaraju/citadel/internal/config"
	"github.com/kiranshivaraju/citadel/internal/provider"
)

// Options bounds and shapes provider calls.
type Options struct {
	// HealthTimeout bounds the local liveness and model-list calls.
	HealthTimeout time.Duration
	// ModelsTimeout bounds the cloud model-list call.
	ModelsTimeout time.Duration
	// VerifyTimeout bounds the test completion, which may follow a pull.
	VerifyTimeout time.Duration
	// InferenceTimeout bounds an analysis request, streamed or not.
	InferenceTimeout time.Duration
	// AllowCloudAnalysis lifts the cross-origin block on cloud providers.
	AllowCloudAnalysis bool
	// FinalizeDelay is held after the final progress update.
	FinalizeDelay time.Duration
	Rewriter      provider.Rewriter
}

// DefaultOptions returns the standard timeouts with cloud analysis blocked.
func DefaultOptions() Options {
	return Options{
		HealthTimeout:    5 * time.Second,
		ModelsTimeout:    10 * time.Second,
		VerifyTimeout:    60 * time.Second,
		InferenceTimeout: 5 * time.Minute,
		FinalizeDelay:    500 * time.Millisecond,
	}
}

// NewOptions builds Options from the environment configuration.
func NewOptions(cfg config.AIConfig) Options {
	return Options{
		HealthTimeout:      cfg.HealthTimeout,
		ModelsTimeout:      cfg.ModelsTimeout,
		VerifyTimeout:      cfg.VerifyTimeout,
		InferenceTimeout:   cfg.InferenceTimeout,
		AllowCloudAnalysis: cfg.AllowCloudAnalysis,
		FinalizeDelay:      cfg.FinalizeDelay,
		Rewriter:           provider.NewRewriter(cfg.ProxyBase),
	}
}
