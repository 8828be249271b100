package response

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Stream writes Server-Sent Events.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStream starts an event stream on w. It writes a 500 error and returns
// false when w cannot flush.
func NewStream(w http.ResponseWriter) (*Stream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "Streaming not supported", nil)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Stream{w: w, flusher: flusher}, true
}

// Event sends one event named name whose data is v encoded as JSON.
func (s *Stream) Event(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, "event: "+eventName(name)+"\ndata: "); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, "\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Ping keeps idle connections open through proxies.
func (s *Stream) Ping() error {
	if _, err := io.WriteString(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WantsStream reports whether the client asked for an event stream.
func WantsStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

func eventName(name string) string {
	n := strings.TrimSpace(name)
	n = strings.NewReplacer("\n", "", "\r", "").Replace(n)
	if n == "" {
		return "message"
	}
	return n
}
