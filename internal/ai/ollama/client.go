// Package ollama talks to a local Ollama server's native endpoints: the
// liveness banner, the model list and the streamed model pull.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kiranshivaraju/citadel/internal/ai/transport"
)

// ErrNotRunning is returned when the base URL answers without the liveness marker.
var ErrNotRunning = errors.New("ollama liveness marker missing")

// Endpoints are the paths and marker the client uses, relative to the base URL.
type Endpoints struct {
	Liveness string
	Tags     string
	Pull     string
	Marker   string
}

// Model is one entry of the local model list.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Client is an Ollama client bound to one base URL.
type Client struct {
	baseURL   string
	endpoints Endpoints
	timeout   time.Duration
}

// New creates a client. timeout bounds the liveness and model-list calls.
func New(baseURL string, endpoints Endpoints, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: endpoints,
		timeout:   timeout,
	}
}

// BaseURL returns the URL the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Liveness fetches the base URL and requires the liveness marker in the body.
func (c *Client) Liveness(ctx context.Context) error {
	resp, err := transport.New(c.timeout, "").Get(ctx, c.baseURL+c.endpoints.Liveness)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return transport.ClassifyReadError(err)
	}
	if !strings.Contains(string(body), c.endpoints.Marker) {
		return fmt.Errorf("%w: got %q", ErrNotRunning, transport.Excerpt(string(body)))
	}
	return nil
}

// ListModels returns the locally available models.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	resp, err := transport.New(c.timeout, "").Get(ctx, c.baseURL+c.endpoints.Tags)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tags struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	if tags.Models == nil {
		return []Model{}, nil
	}
	return tags.Models, nil
}

// HasModel reports whether name is available locally.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if MatchModel(m.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// MatchModel compares an available model name with a configured one. Names
// match exactly or once the implicit ":latest" tag is dropped from both.
func MatchModel(available, wanted string) bool {
	if available == wanted {
		return true
	}
	return normalizeModelName(available) == normalizeModelName(wanted)
}

func normalizeModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimSuffix(name, ":latest")
}
