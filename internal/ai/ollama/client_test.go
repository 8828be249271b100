package ollama_test

import (
	"context"
	"testing"
	"time"

	"github.com/kiranshivaraju/citadel/internal/ai/mock"
	"github.com/kiranshivaraju/citadel/internal/ai/ollama"
	"github.com/kiranshivaraju/citadel/internal/ai/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var endpoints = ollama.Endpoints{
	Liveness: "/",
	Tags:     "/api/tags",
	Pull:     "/api/pull",
	Marker:   mock.OllamaBanner,
}

func newClient(url string) *ollama.Client {
	return ollama.New(url, endpoints, time.Second)
}

func TestLiveness_OK(t *testing.T) {
	srv := mock.NewOllamaServer()
	defer srv.Close()

	assert.NoError(t, newClient(srv.URL).Liveness(context.Background()))
	assert.Equal(t, 1, srv.Calls("/"))
}

func TestLiveness_WrongBanner(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithBanner("nginx default page"))
	defer srv.Close()

	err := newClient(srv.URL).Liveness(context.Background())
	assert.ErrorIs(t, err, ollama.ErrNotRunning)
	assert.Contains(t, err.Error(), "nginx default page")
}

func TestLiveness_Unreachable(t *testing.T) {
	srv := mock.NewOllamaServer()
	url := srv.URL
	srv.Close()

	err := newClient(url).Liveness(context.Background())
	assert.ErrorIs(t, err, transport.ErrUnreachable)
}

func TestListModels(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2:latest", "gpt-oss:20b"))
	defer srv.Close()

	models, err := newClient(srv.URL).ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.2:latest", models[0].Name)
}

func TestHasModel(t *testing.T) {
	srv := mock.NewOllamaServer(mock.WithModels("llama3.2:latest", "gpt-oss:20b"))
	defer srv.Close()
	c := newClient(srv.URL)

	for name, want := range map[string]bool{
		"llama3.2":        true,
		"llama3.2:latest": true,
		"gpt-oss:20b":     true,
		"gpt-oss":         false,
		"mistral":         false,
	} {
		got, err := c.HasModel(context.Background(), name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestMatchModel(t *testing.T) {
	assert.True(t, ollama.MatchModel("llama3.2", "llama3.2"))
	assert.True(t, ollama.MatchModel("llama3.2:latest", "llama3.2"))
	assert.True(t, ollama.MatchModel("Llama3.2:LATEST", "llama3.2"))
	assert.True(t, ollama.MatchModel("llama3.2", "llama3.2:latest"))
	assert.False(t, ollama.MatchModel("llama3.2:1b", "llama3.2"))
	assert.False(t, ollama.MatchModel("llama3", "llama3.2"))
}
