// Package mock provides in-process fakes of the provider HTTP APIs for tests.
// Every fake counts the calls it receives per path.
package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// OllamaBanner is what a healthy Ollama server answers on its root path.
const OllamaBanner = "Ollama is running"

// Server is a fake provider backed by httptest.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	calls map[string]int
	opts  options
}

type options struct {
	banner       string
	models       []string
	pullLines    []string
	pullStatus   int
	chatReply    string
	chatChunks   []string
	chatStatus   int
	chatRaw      string
	apiKey       string
	modelsStatus int
}

// Option configures a fake server.
type Option func(*options)

// WithBanner sets the body served on the root path.
func WithBanner(b string) Option { return func(o *options) { o.banner = b } }

// WithModels sets the local model list.
func WithModels(names ...string) Option { return func(o *options) { o.models = names } }

// WithPullLines sets the raw NDJSON lines streamed by the pull endpoint.
func WithPullLines(lines ...string) Option { return func(o *options) { o.pullLines = lines } }

// WithPullStatus makes the pull endpoint fail with status.
func WithPullStatus(status int) Option { return func(o *options) { o.pullStatus = status } }

// WithChatReply sets the completion text.
func WithChatReply(reply string) Option { return func(o *options) { o.chatReply = reply } }

// WithChatChunks sets the deltas of a streamed completion.
func WithChatChunks(chunks ...string) Option { return func(o *options) { o.chatChunks = chunks } }

// WithChatStatus makes the chat endpoint fail with status.
func WithChatStatus(status int) Option { return func(o *options) { o.chatStatus = status } }

// WithChatRawBody makes the chat endpoint answer 200 with body as-is.
func WithChatRawBody(body string) Option { return func(o *options) { o.chatRaw = body } }

// WithAPIKey makes the cloud endpoints require a bearer token.
func WithAPIKey(key string) Option { return func(o *options) { o.apiKey = key } }

// WithModelsStatus makes the cloud model list fail with status.
func WithModelsStatus(status int) Option { return func(o *options) { o.modelsStatus = status } }

// NewOllamaServer starts a fake local provider. By default it is healthy,
// has no models, pulls successfully and replies "hello".
func NewOllamaServer(opts ...Option) *Server {
	s := newServer(opts)
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.count(s.handleBanner))
	mux.HandleFunc("/api/tags", s.count(s.handleTags))
	mux.HandleFunc("/api/pull", s.count(s.handlePull))
	mux.HandleFunc("/v1/chat/completions", s.count(s.handleChat))
	s.Server = httptest.NewServer(mux)
	return s
}

// NewCloudServer starts a fake OpenAI-compatible provider whose base URL is
// the server URL.
func NewCloudServer(opts ...Option) *Server {
	s := newServer(opts)
	mux := http.NewServeMux()
	mux.HandleFunc("/models", s.count(s.authorized(s.handleCloudModels)))
	mux.HandleFunc("/chat/completions", s.count(s.authorized(s.handleChat)))
	s.Server = httptest.NewServer(mux)
	return s
}

func newServer(opts []Option) *Server {
	o := options{
		banner:    OllamaBanner,
		chatReply: "hello",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{calls: make(map[string]int), opts: o}
}

// Calls returns how many requests path has received.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of requests received on any path.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) count(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()
		h(w, r)
	}
}

func (s *Server) authorized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.apiKey {
			http.Error(w, `{"error":{"message":"Incorrect API key provided"}}`, http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	io.WriteString(w, s.opts.banner)
}

func (s *Server) handleTags(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	names := append([]string(nil), s.opts.models...)
	s.mu.Unlock()

	type model struct {
		Name string `json:"name"`
	}
	out := struct {
		Models []model `json:"models"`
	}{Models: []model{}}
	for _, n := range names {
		out.Models = append(out.Models, model{Name: n})
	}
	writeJSON(w, out)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if s.opts.pullStatus != 0 {
		http.Error(w, "pull failed", s.opts.pullStatus)
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	lines := s.opts.pullLines
	if lines == nil {
		lines = []string{
			`{"status":"pulling manifest"}`,
			`{"status":"pulling 6a0746a1ec1a","digest":"sha256:6a0746a1ec1a","total":200,"completed":50}`,
			`{"status":"pulling 6a0746a1ec1a","digest":"sha256:6a0746a1ec1a","total":200,"completed":200}`,
			`{"status":"verifying sha256 digest"}`,
			`{"status":"success"}`,
		}
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	succeeded := false
	for _, l := range lines {
		io.WriteString(w, l+"\n")
		if flusher != nil {
			flusher.Flush()
		}
		if strings.Contains(l, `"status":"success"`) {
			succeeded = true
		}
	}

	if succeeded && req.Name != "" {
		s.mu.Lock()
		s.opts.models = append(s.opts.models, req.Name)
		s.mu.Unlock()
	}
}

func (s *Server) handleCloudModels(w http.ResponseWriter, _ *http.Request) {
	if s.opts.modelsStatus != 0 {
		http.Error(w, `{"error":"upstream unavailable"}`, s.opts.modelsStatus)
		return
	}
	writeJSON(w, map[string]any{"object": "list", "data": []map[string]string{{"id": "test-model"}}})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.opts.chatStatus != 0 {
		http.Error(w, `{"error":"chat failed"}`, s.opts.chatStatus)
		return
	}
	if s.opts.chatRaw != "" {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, s.opts.chatRaw)
		return
	}
	var req struct {
		Stream bool `json:"stream"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if !req.Stream {
		writeJSON(w, map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": s.opts.chatReply}}},
		})
		return
	}

	chunks := s.opts.chatChunks
	if chunks == nil {
		chunks = split(s.opts.chatReply, 16)
	}
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, c := range chunks {
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"delta": map[string]string{"content": c}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}
	io.WriteString(w, "data: [DONE]\n\n")
}

func split(s string, n int) []string {
	var out []string
	r := []rune(s)
	for len(r) > n {
		out = append(out, string(r[:n]))
		r = r[n:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
