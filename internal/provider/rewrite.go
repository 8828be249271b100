package provider

import (
	"strings"

	"github.com/kiranshivaraju/citadel/pkg/models"
)

// Rewriter redirects provider calls through the development proxy. A zero
// Rewriter leaves base URLs untouched.
type Rewriter struct {
	proxyBase string
}

// NewRewriter routes every provider through proxyBase + the provider's proxy
// prefix. An empty proxyBase disables rewriting.
func NewRewriter(proxyBase string) Rewriter {
	return Rewriter{proxyBase: strings.TrimRight(proxyBase, "/")}
}

// Enabled reports whether calls are being redirected.
func (r Rewriter) Enabled() bool { return r.proxyBase != "" }

// BaseURL resolves the URL calls to p should be sent to.
func (r Rewriter) BaseURL(p models.AIProvider) string {
	if r.proxyBase == "" {
		return BaseURL(p)
	}
	s, ok := Lookup(p.ID)
	if !ok || s.ProxyPrefix == "" {
		return BaseURL(p)
	}
	return r.proxyBase + s.ProxyPrefix
}
