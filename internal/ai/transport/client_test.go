package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/citadel/internal/ai/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_SetsBearerHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := transport.New(time.Second, "sk-test")
	resp, err := c.Get(context.Background(), srv.URL+"/models")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestGet_NoBearerWhenKeyEmpty(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	resp, err := transport.New(time.Second, "").Get(context.Background(), srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, gotAuth)
}

func TestPostJSON_EncodesBody(t *testing.T) {
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	resp, err := transport.New(time.Second, "").PostJSON(context.Background(), srv.URL,
		map[string]any{"model": "llama3.2", "stream": true})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "llama3.2", got["model"])
	assert.Equal(t, true, got["stream"])
}

func TestNon2xx_ReturnsStatusErrorWithExcerpt(t *testing.T) {
	long := strings.Repeat("x", 300)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, long)
	}))
	defer srv.Close()

	_, err := transport.New(time.Second, "bad").Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnexpectedStatus)

	var se *transport.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Len(t, se.Body, transport.ExcerptLimit)
	assert.True(t, strings.HasPrefix(err.Error(), "401 - "))
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := transport.New(time.Second, "").Get(context.Background(), url)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnreachable)
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := transport.New(50*time.Millisecond, "").Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrTimeout)
}

func TestExcerpt_RuneSafe(t *testing.T) {
	s := strings.Repeat("é", 150)
	got := transport.Excerpt(s)
	assert.Equal(t, 100, len([]rune(got)))
	assert.Equal(t, "short", transport.Excerpt("short"))
}
