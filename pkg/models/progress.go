package models

// Analysis pipeline stages, in the order they are entered.
const (
	StageIdle       = "idle"
	StageTesting    = "testing"
	StageConnecting = "connecting"
	StageSending    = "sending"
	StageStreaming  = "streaming"
	StageProcessing = "processing"
	StageFinalizing = "finalizing"
	StageCompleted  = "completed"
	StageError      = "error"
)

// Progress is reported to the caller each time the pipeline advances.
// Text carries the accumulated model reply while streaming.
type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
	Text    string `json:"text,omitempty"`
}
