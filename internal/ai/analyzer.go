package ai

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/citadel/internal/ai/openai"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// ProgressFunc receives each pipeline update.
type ProgressFunc func(models.Progress)

// Analyzer runs one log through the pipeline: probe, request, stream or
// single-shot reply, extraction.
type Analyzer struct {
	opts   Options
	prober *Prober
	sleep  func(ctx context.Context, d time.Duration)
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{opts: opts, prober: NewProber(opts), sleep: sleepCtx}
}

// Prober returns the prober the analyzer uses.
func (a *Analyzer) Prober() *Prober { return a.prober }

// Analyze analyses content with p. A failing connection test stops the
// pipeline before any chat request is made. Cloud providers are refused at
// the connecting stage unless cloud analysis is allowed. Every failure is an
// *Error whose message is meant for the user.
func (a *Analyzer) Analyze(ctx context.Context, p models.AIProvider, content string, onProgress ProgressFunc) (models.AnalysisResult, error) {
	report := func(stage string, percent int, msg, text string) {
		if onProgress != nil {
			onProgress(models.Progress{Stage: stage, Percent: percent, Message: msg, Text: text})
		}
	}

	if !provider.Usable(p) {
		return models.AnalysisResult{}, configError()
	}
	spec, ok := provider.Lookup(p.ID)
	if !ok {
		return models.AnalysisResult{}, unknownProviderError(p.ID)
	}
	name := provider.DisplayName(p)

	report(models.StageTesting, 10, "Testing connection to AI model...", "")
	onPull := func(pp models.PullProgress) {
		msg := "Pulling model: " + pp.Status
		if pp.Percent >= 0 {
			msg = fmt.Sprintf("Pulling model: %s (%d%%)", pp.Status, pp.Percent)
		}
		report(models.StageTesting, 10, msg, "")
	}
	if res, err := a.prober.probe(ctx, p, onPull); !res.Success {
		return models.AnalysisResult{}, err
	}

	report(models.StageConnecting, 25, "Connection verified. Sending log data...", "")
	report(models.StageConnecting, 35, fmt.Sprintf("Connecting to %s...", name), "")

	base := a.opts.Rewriter.BaseURL(p)
	var text string

	if spec.Local() {
		req, err := BuildRequest(p, base, content, true)
		if err != nil {
			return models.AnalysisResult{}, err
		}
		report(models.StageStreaming, 50, fmt.Sprintf("Streaming response from %s...", req.Body.Model), "")
		text, err = openai.Stream(ctx, req, a.opts.InferenceTimeout, func(_, full string) {
			report(models.StageStreaming, streamPercent(full), "Receiving analysis...", full)
		})
		if err != nil {
			return models.AnalysisResult{}, describe(spec, base, err)
		}
	} else {
		if !a.opts.AllowCloudAnalysis {
			return models.AnalysisResult{}, policyError(name)
		}
		req, err := BuildRequest(p, base, content, false)
		if err != nil {
			return models.AnalysisResult{}, err
		}
		report(models.StageSending, 50, fmt.Sprintf("Sending log data to %s...", name), "")
		text, err = openai.Complete(ctx, req, a.opts.InferenceTimeout)
		if err != nil {
			return models.AnalysisResult{}, describe(spec, base, err)
		}
		report(models.StageProcessing, 75, "Processing response...", "")
	}

	report(models.StageProcessing, 90, "Parsing analysis results...", "")
	result, err := ExtractAnalysis(text)
	if err != nil {
		return models.AnalysisResult{}, err
	}

	report(models.StageFinalizing, 100, "Analysis complete!", "")
	a.sleep(ctx, a.opts.FinalizeDelay)
	return result, nil
}

// AnalyzeRecord runs Analyze outside a session and returns the finished
// record. The error, if any, is also recorded on it.
func (a *Analyzer) AnalyzeRecord(ctx context.Context, p models.AIProvider, fileName, content string, onProgress ProgressFunc) (*models.LogAnalysis, error) {
	record := &models.LogAnalysis{
		ID:         uuid.New(),
		FileName:   fileName,
		UploadedAt: time.Now().UTC(),
		Status:     models.AnalysisStatusAnalyzing,
		Provider:   provider.DisplayName(p),
	}
	result, err := a.Analyze(ctx, p, content, onProgress)
	if err != nil {
		record.Fail(err.Error(), time.Now().UTC())
		return record, err
	}
	record.Complete(result, time.Now().UTC())
	return record, nil
}

// streamPercent grows with the amount of text received and stays below the
// parsing stage.
func streamPercent(full string) int {
	pct := 50 + utf8.RuneCountInString(full)/100
	if pct > 85 {
		return 85
	}
	return pct
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
