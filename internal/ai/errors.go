package ai

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/citadel/internal/ai/ollama"
	"github.com/kiranshivaraju/citadel/internal/ai/openai"
	"github.com/kiranshivaraju/citadel/internal/ai/transport"
	"github.com/kiranshivaraju/citadel/internal/provider"
)

// Sentinel errors. They are wrapped in *Error, which carries the message
// shown to the user.
var (
	ErrNoActiveProvider   = errors.New("no usable ai provider")
	ErrUnknownProvider    = errors.New("unknown ai provider")
	ErrCloudBlocked       = errors.New("cloud analysis blocked by cross-origin policy")
	ErrInvalidResponse    = errors.New("ai provider returned invalid response")
	ErrProbeFailed        = errors.New("connection test failed")
	ErrAnalysisInProgress = errors.New("an analysis is already running for this session")
)

// ErrorClass groups failures by how the user can react to them.
type ErrorClass string

const (
	ClassConfiguration ErrorClass = "configuration"
	ClassConnectivity  ErrorClass = "connectivity"
	ClassProtocol      ErrorClass = "protocol"
	ClassPolicy        ErrorClass = "policy"
	ClassInternal      ErrorClass = "internal"
)

// Error is a terminal analysis or probe failure.
type Error struct {
	Class   ErrorClass
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Classify returns the class of err.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr.Class
	}
	switch {
	case errors.Is(err, ErrNoActiveProvider), errors.Is(err, ErrUnknownProvider):
		return ClassConfiguration
	case errors.Is(err, transport.ErrUnreachable), errors.Is(err, transport.ErrTimeout):
		return ClassConnectivity
	case errors.Is(err, transport.ErrUnexpectedStatus), errors.Is(err, ErrInvalidResponse),
		errors.Is(err, openai.ErrMalformedReply):
		return ClassProtocol
	case errors.Is(err, ErrCloudBlocked):
		return ClassPolicy
	}
	return ClassInternal
}

const (
	msgNoProvider     = "No AI provider configured. Open AI settings, enable a provider and add its API key (or select Ollama)."
	msgCloudNetwork   = "Network error. CORS may be blocking the request - cloud APIs require a backend proxy."
	msgInvalidJSON    = "Could not parse AI response as JSON"
	msgAnalysisBusy   = "An analysis is already running. Wait for it to finish before uploading another file."
	msgLocalNetwork   = "Cannot reach Ollama. Make sure it's running at %s"
	msgLocalNotOllama = "Ollama is not responding correctly at %s"
	msgStatus         = "API error: %d - %s"
	msgCloudBlocked   = "Cannot call %s directly from browser due to CORS. Use Ollama for local analysis."
)

func configError() *Error {
	return &Error{Class: ClassConfiguration, Message: msgNoProvider, Err: ErrNoActiveProvider}
}

func unknownProviderError(id string) *Error {
	return &Error{
		Class:   ClassConfiguration,
		Message: fmt.Sprintf("Unknown AI provider %q", id),
		Err:     ErrUnknownProvider,
	}
}

func busyError() *Error {
	return &Error{Class: ClassConfiguration, Message: msgAnalysisBusy, Err: ErrAnalysisInProgress}
}

func policyError(name string) *Error {
	return &Error{Class: ClassPolicy, Message: fmt.Sprintf(msgCloudBlocked, name), Err: ErrCloudBlocked}
}

func parseError(cause error) *Error {
	return &Error{Class: ClassProtocol, Message: msgInvalidJSON, Err: fmt.Errorf("%w: %v", ErrInvalidResponse, cause)}
}

// describe rewrites a provider call failure into an actionable message for spec.
func describe(spec provider.Spec, baseURL string, err error) *Error {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}

	var se *transport.StatusError
	var me *openai.MalformedReplyError
	switch {
	case errors.As(err, &me):
		return &Error{
			Class:   ClassProtocol,
			Message: fmt.Sprintf("%s: %s", msgInvalidJSON, me.Excerpt),
			Err:     fmt.Errorf("%w: %w", ErrInvalidResponse, err),
		}
	case errors.Is(err, ollama.ErrNotRunning):
		return &Error{Class: ClassConnectivity, Message: fmt.Sprintf(msgLocalNotOllama, baseURL), Err: err}
	case errors.Is(err, transport.ErrUnreachable), errors.Is(err, transport.ErrTimeout):
		if spec.Local() {
			return &Error{Class: ClassConnectivity, Message: fmt.Sprintf(msgLocalNetwork, baseURL), Err: err}
		}
		return &Error{Class: ClassConnectivity, Message: msgCloudNetwork, Err: err}
	case errors.As(err, &se):
		return &Error{Class: ClassProtocol, Message: fmt.Sprintf(msgStatus, se.Code, se.Body), Err: err}
	case errors.Is(err, openai.ErrEmptyReply):
		return &Error{Class: ClassProtocol, Message: "The model returned no choices", Err: err}
	}
	return &Error{Class: ClassInternal, Message: err.Error(), Err: err}
}
