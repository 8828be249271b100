// Package transport is the HTTP layer shared by the provider clients. It
// applies authentication, bounds each call with a timeout and turns
// transport failures and non-2xx replies into sentinel errors.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
	"unicode/utf8"
)

// Sentinel errors for provider calls.
var (
	ErrUnreachable      = errors.New("provider unreachable")
	ErrTimeout          = errors.New("provider request timed out")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// ExcerptLimit caps how much of an error body is carried in a StatusError.
const ExcerptLimit = 100

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d - %s", e.Code, e.Body)
}

// Is lets errors.Is(err, ErrUnexpectedStatus) match any StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Client issues requests to one provider.
type Client struct {
	bearer string
	client *http.Client
}

// New creates a Client. A zero timeout leaves the call bounded only by ctx,
// which streaming reads need. A non-empty bearer is sent as a bearer token.
func New(timeout time.Duration, bearer string) *Client {
	return &Client{
		bearer: bearer,
		client: &http.Client{Timeout: timeout},
	}
}

// Get issues a GET and returns the response when the status is 2xx.
// The caller must close the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return c.do(req)
}

// PostJSON encodes body as JSON, posts it and returns the response when the
// status is 2xx. The caller must close the body.
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: Excerpt(string(body))}
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// ClassifyReadError maps a failure while reading a streamed body the same
// way a failed request is mapped.
func ClassifyReadError(err error) error {
	if err == nil {
		return nil
	}
	return classifyError(err)
}

// Excerpt shortens s to at most ExcerptLimit characters without splitting runes.
func Excerpt(s string) string {
	if utf8.RuneCountInString(s) <= ExcerptLimit {
		return s
	}
	n := 0
	for i := range s {
		if n == ExcerptLimit {
			return s[:i]
		}
		n++
	}
	return s
}
