package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kiranshivaraju/citadel/internal/ai/ollama"
	"github.com/kiranshivaraju/citadel/internal/ai/openai"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// Prober checks that a provider is reachable and able to answer.
type Prober struct {
	opts Options
}

// NewProber creates a Prober.
func NewProber(opts Options) *Prober {
	return &Prober{opts: opts}
}

// TestConnection probes p. Cloud providers are checked with an authenticated
// model listing. The local provider is checked in three phases: liveness
// banner, model presence (pulling the model when missing), and a real test
// completion whose reply is returned verbatim.
func (pr *Prober) TestConnection(ctx context.Context, p models.AIProvider, onPull ollama.ProgressFunc) models.ConnectionTestResult {
	res, err := pr.probe(ctx, p, onPull)
	if err != nil {
		slog.Info("connection test failed", "provider", p.ID, "class", Classify(err), "error", err)
	}
	return res
}

// Pull downloads model on the local provider p.
func (pr *Prober) Pull(ctx context.Context, p models.AIProvider, model string, onPull ollama.ProgressFunc) models.PullResult {
	spec, ok := provider.Lookup(p.ID)
	if !ok || !spec.Local() {
		return models.PullResult{Error: "model pull is only supported for the local provider"}
	}
	if model == "" {
		model = provider.Model(p)
	}
	return pr.ollamaClient(spec, p).Pull(ctx, model, onPull)
}

func (pr *Prober) probe(ctx context.Context, p models.AIProvider, onPull ollama.ProgressFunc) (models.ConnectionTestResult, error) {
	spec, ok := provider.Lookup(p.ID)
	if !ok {
		return failed(unknownProviderError(p.ID))
	}
	if spec.Local() {
		return pr.probeLocal(ctx, spec, p, onPull)
	}
	return pr.probeCloud(ctx, spec, p)
}

func (pr *Prober) probeCloud(ctx context.Context, spec provider.Spec, p models.AIProvider) (models.ConnectionTestResult, error) {
	base := pr.opts.Rewriter.BaseURL(p)
	start := time.Now()

	if err := openai.ListModels(ctx, base+spec.ModelsPath, p.APIKey, pr.opts.ModelsTimeout); err != nil {
		return failed(describe(spec, base, err))
	}

	latency := time.Since(start).Milliseconds()
	return models.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("Connected to %s successfully", provider.DisplayName(p)),
		Latency: &latency,
	}, nil
}

func (pr *Prober) probeLocal(ctx context.Context, spec provider.Spec, p models.AIProvider, onPull ollama.ProgressFunc) (models.ConnectionTestResult, error) {
	base := pr.opts.Rewriter.BaseURL(p)
	client := pr.ollamaClient(spec, p)
	model := provider.Model(p)

	if err := client.Liveness(ctx); err != nil {
		return failed(describe(spec, base, err))
	}

	present, err := client.HasModel(ctx, model)
	if err != nil {
		return failed(describe(spec, base, err))
	}
	if !present {
		slog.Info("model missing, pulling", "model", model, "base_url", base)
		res := client.Pull(ctx, model, onPull)
		if !res.Success {
			return failed(&Error{
				Class:   ClassConnectivity,
				Message: fmt.Sprintf("Failed to pull model %s: %s", model, res.Error),
				Err:     ErrProbeFailed,
			})
		}
	}

	start := time.Now()
	reply, err := openai.Complete(ctx, buildVerifyRequest(p, spec, base), pr.opts.VerifyTimeout)
	if err != nil {
		return failed(describe(spec, base, err))
	}
	if strings.TrimSpace(reply) == "" {
		return failed(&Error{
			Class:   ClassProtocol,
			Message: fmt.Sprintf("Model %s returned an empty response", model),
			Err:     ErrInvalidResponse,
		})
	}

	latency := time.Since(start).Milliseconds()
	return models.ConnectionTestResult{
		Success:       true,
		Message:       fmt.Sprintf("Connected to Ollama. Model %s is ready", model),
		Latency:       &latency,
		ModelResponse: reply,
	}, nil
}

func (pr *Prober) ollamaClient(spec provider.Spec, p models.AIProvider) *ollama.Client {
	return ollama.New(pr.opts.Rewriter.BaseURL(p), ollama.Endpoints{
		Liveness: spec.LivenessPath,
		Tags:     spec.ModelsPath,
		Pull:     spec.PullPath,
		Marker:   spec.LivenessMarker,
	}, pr.opts.HealthTimeout)
}

func failed(err *Error) (models.ConnectionTestResult, error) {
	return models.ConnectionTestResult{Success: false, Message: err.Message}, err
}
