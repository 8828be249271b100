package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/kiranshivaraju/citadel/internal/api/response"
	"github.com/kiranshivaraju/citadel/internal/provider"
)

// DevProxy forwards requests under each provider's proxy prefix to that
// provider, with the prefix stripped.
type DevProxy struct {
	routes map[string]http.Handler
}

// NewDevProxy builds a proxy for every registered provider. Targets default to
// the registry base URLs; overrides maps a provider id to another upstream.
func NewDevProxy(overrides map[string]string) (*DevProxy, error) {
	d := &DevProxy{routes: make(map[string]http.Handler)}
	for _, spec := range provider.All() {
		if spec.ProxyPrefix == "" {
			continue
		}
		raw := spec.DefaultBaseURL
		if o, ok := overrides[spec.ID]; ok && o != "" {
			raw = o
		}
		target, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("proxy target for %s: %w", spec.ID, err)
		}
		d.routes[spec.ProxyPrefix] = http.StripPrefix(spec.ProxyPrefix, reverseProxy(spec.ID, target))
	}
	return d, nil
}

// Prefixes lists the mount points, sorted.
func (d *DevProxy) Prefixes() []string {
	out := make([]string, 0, len(d.routes))
	for p := range d.routes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (d *DevProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for prefix, h := range d.routes {
		if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
			h.ServeHTTP(w, r)
			return
		}
	}
	response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "No proxy for "+r.URL.Path, nil)
}

func reverseProxy(id string, target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			// Browsers attach their own origin; upstreams reject it.
			pr.Out.Header.Del("Origin")
			pr.Out.Header.Del("Referer")
		},
		// Streams must reach the client as they arrive.
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Warn("dev proxy upstream failed", "provider", id, "path", r.URL.Path, "error", err)
			response.Error(w, http.StatusBadGateway, "PROVIDER_UNREACHABLE", "Upstream "+id+" is unreachable", nil)
		},
	}
}
