package models

// ConnectionTestResult is the outcome of probing a provider.
type ConnectionTestResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Latency       *int64 `json:"latency,omitempty"`
	ModelResponse string `json:"modelResponse,omitempty"`
}

// PullProgress is one snapshot of a local model download.
// Percent is -1 when the total size is not yet known.
type PullProgress struct {
	Status         string `json:"status"`
	Percent        int    `json:"percent"`
	CompletedBytes int64  `json:"completedBytes,omitempty"`
	TotalBytes     int64  `json:"totalBytes,omitempty"`
}

// InProgress reports whether the snapshot shows a download with a known size
// that has not finished yet.
func (p PullProgress) InProgress() bool {
	return p.Percent >= 0 && p.Percent < 100
}

// PullResult is the outcome of a model pull.
type PullResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
