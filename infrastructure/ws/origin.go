// Origin normalization and validation for WebSocket upgrade requests.
package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// originChecker holds the normalized allow-list. An empty list allows
// every origin, which matches the relay's permissive default; the list
// is built once at server construction and read-only afterwards.
type originChecker struct {
	log      *slog.Logger
	allowed  map[string]struct{}
	allowAll bool
}

func newOriginChecker(log *slog.Logger, origins []string) *originChecker {
	checker := &originChecker{log: log, allowed: make(map[string]struct{})}
	if len(origins) == 0 {
		checker.allowAll = true
		return checker
	}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			checker.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		checker.allowed[normalized] = struct{}{}
	}
	return checker
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (c *originChecker) check(r *http.Request) bool {
	if c.allowAll {
		return true
	}

	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		// Non-browser clients send no Origin; only browsers need the
		// cross-origin gate.
		return true
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}
	if _, exists := c.allowed[normalized]; exists {
		return true
	}

	c.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", originHeader)
	return false
}
