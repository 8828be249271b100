package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kiranshivaraju/citadel/internal/ai/transport"
)

var (
	// ErrEmptyReply is returned when a completion carries no choices.
	ErrEmptyReply = errors.New("completion returned no choices")
	// ErrMalformedReply is returned when a 2xx completion body is not JSON.
	ErrMalformedReply = errors.New("completion reply is not valid json")
)

// MalformedReplyError carries an excerpt of a completion body that could not
// be decoded.
type MalformedReplyError struct {
	Excerpt string
	Err     error
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("%v: %v", ErrMalformedReply, e.Err)
}

func (e *MalformedReplyError) Unwrap() error { return ErrMalformedReply }

// ListModels calls the model-listing endpoint. Only reachability and a 2xx
// status matter, the listing itself is discarded.
func ListModels(ctx context.Context, url, apiKey string, timeout time.Duration) error {
	resp, err := transport.New(timeout, apiKey).Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Complete sends a non-streamed request and returns the first choice's text.
func Complete(ctx context.Context, req Request, timeout time.Duration) (string, error) {
	req.Body.Stream = false

	resp, err := transport.New(timeout, req.APIKey).PostJSON(ctx, req.URL, req.Body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading completion: %w", transport.ClassifyReadError(err))
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &MalformedReplyError{Excerpt: transport.Excerpt(string(body)), Err: err}
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}

// Stream sends a streamed request and feeds the reply through a StreamReader,
// calling onChunk for every content delta. It returns the accumulated text.
func Stream(ctx context.Context, req Request, timeout time.Duration, onChunk ChunkFunc) (string, error) {
	req.Body.Stream = true

	resp, err := transport.New(timeout, req.APIKey).PostJSON(ctx, req.URL, req.Body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	sr := NewStreamReader(onChunk)
	if err := sr.ReadFrom(resp.Body); err != nil {
		return sr.Text(), transport.ClassifyReadError(err)
	}
	return sr.Text(), nil
}
