package ws

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// originChecker validates the Origin header of upgrade requests against
// a configured allowlist. An empty list admits only same-host requests;
// "*" admits everything.
type originChecker struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginChecker(origins []string) *originChecker {
	oc := &originChecker{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(trimmed); ok {
			oc.allowed[normalized] = struct{}{}
		} else {
			log.Warn().Str("module", "ws").Str("origin", origin).Msg("ignoring invalid origin in configuration")
		}
	}
	return oc
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (oc *originChecker) check(r *http.Request) bool {
	if oc.allowAll {
		return true
	}
	header := r.Header.Get("Origin")
	if header == "" {
		// Non-browser clients send no Origin; nothing to enforce.
		return true
	}
	parsed, err := url.Parse(header)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	if len(oc.allowed) == 0 {
		return strings.EqualFold(parsed.Host, r.Host)
	}
	normalized := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	if _, exists := oc.allowed[normalized]; exists {
		return true
	}
	log.Warn().Str("module", "ws").Str("origin", header).Msg("blocked upgrade from disallowed origin")
	return false
}
