package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/kiranshivaraju/citadel/internal/ai/transport"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// SuccessStatus is the status of the final line of a finished pull.
const SuccessStatus = "success"

// ProgressFunc receives one snapshot per parsed progress line.
type ProgressFunc func(models.PullProgress)

type pullRequest struct {
	Name   string `json:"name"`
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

type pullLine struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

// Pull downloads model and reports progress. A pull succeeds when a line
// reports the success status or the stream ends cleanly. Malformed lines are
// skipped. The pull is bounded only by ctx.
func (c *Client) Pull(ctx context.Context, model string, onProgress ProgressFunc) models.PullResult {
	resp, err := transport.New(0, "").PostJSON(ctx, c.baseURL+c.endpoints.Pull,
		pullRequest{Name: model, Model: model, Stream: true})
	if err != nil {
		return models.PullResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var line pullLine
		if err := json.Unmarshal(raw, &line); err != nil {
			slog.Debug("skipping malformed pull line", "model", model, "error", err)
			continue
		}
		if line.Error != "" {
			return models.PullResult{Error: line.Error}
		}

		if onProgress != nil {
			onProgress(snapshot(line))
		}
		if line.Status == SuccessStatus {
			slog.Info("model pulled", "model", model)
			return models.PullResult{Success: true}
		}
	}

	if err := scanner.Err(); err != nil {
		return models.PullResult{Error: fmt.Sprintf("reading pull stream: %v", transport.ClassifyReadError(err))}
	}

	slog.Info("model pull stream ended", "model", model)
	return models.PullResult{Success: true}
}

// snapshot builds a fresh progress value so callers never share state.
func snapshot(line pullLine) models.PullProgress {
	p := models.PullProgress{Status: line.Status, Percent: -1}
	if line.Total > 0 && line.Completed >= 0 {
		p.Percent = int(math.Round(float64(line.Completed) / float64(line.Total) * 100))
		p.CompletedBytes = line.Completed
		p.TotalBytes = line.Total
	}
	return p
}

// FormatBytes renders a byte count for display, e.g. "1.5 GB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
