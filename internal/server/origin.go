package server

import (
	"net/http"
	"slices"
)

// OriginChecker gates websocket upgrades by Origin header. An empty allow
// list or a "*" entry accepts every origin; requests without an Origin header
// (non-browser clients) are always accepted.
type OriginChecker struct {
	allowedOrigins []string
}

func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	return &OriginChecker{
		allowedOrigins: allowedOrigins,
	}
}

func (c *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(c.allowedOrigins) == 0 || slices.Contains(c.allowedOrigins, "*") {
		return true
	}

	return slices.Contains(c.allowedOrigins, origin)
}
