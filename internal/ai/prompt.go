package ai

import (
	"github.com/kiranshivaraju/citadel/internal/ai/openai"
	"github.com/kiranshivaraju/citadel/internal/provider"
	"github.com/kiranshivaraju/citadel/pkg/models"
)

// MaxLogChars bounds how much of a log is sent to the model.
const MaxLogChars = 15000

const systemPrompt = `You are a security and systems log analyst. Analyze the provided log content and return a JSON object with:
- summary: A brief 2-3 sentence summary of the log
- severityBreakdown: Object with counts for critical, warning, info, success
- insights: Array of 3-5 key insights about patterns, anomalies, or issues
- recommendations: Array of 2-4 actionable recommendations

Only return valid JSON, no markdown or explanations.`

const verifyPrompt = "say hello"

// BuildRequest builds the analysis chat call for p. baseURL is where the
// provider is reached, after any proxy rewriting. Cloud providers get bearer
// auth; the local provider gets none.
func BuildRequest(p models.AIProvider, baseURL, logText string, stream bool) (openai.Request, error) {
	spec, ok := provider.Lookup(p.ID)
	if !ok {
		return openai.Request{}, unknownProviderError(p.ID)
	}

	req := openai.Request{
		URL: baseURL + spec.ChatPath,
		Body: openai.ChatRequest{
			Model: provider.Model(p),
			Messages: []openai.Message{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: "Analyze this log:\n\n" + TruncateLog(logText)},
			},
			Stream:      stream,
			Temperature: spec.Temperature,
		},
	}
	if spec.Auth == provider.AuthBearer {
		req.APIKey = p.APIKey
	}
	return req, nil
}

func buildVerifyRequest(p models.AIProvider, spec provider.Spec, baseURL string) openai.Request {
	req := openai.Request{
		URL: baseURL + spec.ChatPath,
		Body: openai.ChatRequest{
			Model:    provider.Model(p),
			Messages: []openai.Message{{Role: "user", Content: verifyPrompt}},
		},
	}
	if spec.Auth == provider.AuthBearer {
		req.APIKey = p.APIKey
	}
	return req
}

// TruncateLog cuts text to MaxLogChars characters. Line boundaries are not
// preserved.
func TruncateLog(text string) string {
	n := 0
	for i := range text {
		if n == MaxLogChars {
			return text[:i]
		}
		n++
	}
	return text
}
