package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/citadel/internal/api"
	mw "github.com/kiranshivaraju/citadel/internal/api/middleware"
	"github.com/kiranshivaraju/citadel/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProxy struct{}

func (stubProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("proxied " + r.URL.Path))
}

func (stubProxy) Prefixes() []string { return []string{"/ollama-api"} }

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	ok := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	return api.NewRouter(api.Dependencies{
		Session:   mw.NewSession(time.Hour, false),
		RateLimit: mw.NewRateLimit(c, limit),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		ListAnalyses:   ok,
		UploadAnalysis: ok,
		DevProxy:       stubProxy{},
	})
}

func TestRouter_HealthEndpoint_NoSession(t *testing.T) {
	router := newTestRouter(t, 30)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(mw.SessionHeader))
}

func TestRouter_SessionAssigned(t *testing.T) {
	router := newTestRouter(t, 30)

	req := httptest.NewRequest("GET", "/api/v1/analyses", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(mw.SessionHeader))
}

func TestRouter_UnwiredEndpoints_NotImplemented(t *testing.T) {
	router := newTestRouter(t, 30)

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/settings/ai"},
		{"PUT", "/api/v1/settings/dashboard"},
		{"GET", "/api/v1/providers"},
		{"POST", "/api/v1/providers/openai/test"},
		{"POST", "/api/v1/providers/ollama/pull"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNotImplemented, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "NOT_IMPLEMENTED", errObj["code"])
		})
	}
}

func TestRouter_MutatingRoutesRateLimited(t *testing.T) {
	router := newTestRouter(t, 2)

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(mw.SessionHeader, "6f1c1f0e-2b8c-4d55-9a8e-6b7b1f7f2a10")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("POST", "/api/v1/analyses"))
	assert.Equal(t, http.StatusOK, send("POST", "/api/v1/analyses"))
	assert.Equal(t, http.StatusTooManyRequests, send("POST", "/api/v1/analyses"))

	// reads are not counted
	assert.Equal(t, http.StatusOK, send("GET", "/api/v1/analyses"))
}

func TestRouter_DevProxyMounted(t *testing.T) {
	router := newTestRouter(t, 30)

	req := httptest.NewRequest("GET", "/ollama-api/api/tags", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "proxied /ollama-api/api/tags", w.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(t, 30)

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
