// Package openai speaks the OpenAI-compatible chat-completions protocol used
// by every cloud provider and by the local server's /v1 endpoint.
package openai

import "net/http"

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a chat-completions call.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// Request is a fully built chat call: where to send it, how to authenticate
// and what to send. An empty APIKey means no authentication.
type Request struct {
	URL    string
	APIKey string
	Body   ChatRequest
}

// Headers returns the headers the request is sent with.
func (r Request) Headers() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		h.Set("Authorization", "Bearer "+r.APIKey)
	}
	return h
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type streamFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}
