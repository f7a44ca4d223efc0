package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"explora/pkg/logger"
)

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior. Put here so limiter.go
// and gateway.go can reference the shared type.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

func validateAuthor(a string) (bool, string) {
	if a == "" {
		return false, "author required"
	}
	if len(a) > 128 {
		return false, "author too long"
	}
	return true, ""
}

// ResolveAuthorFromRequest is the canonical author resolver handlers call.
// Backend/admin callers may supply an author via body, the X-User-ID header
// or the author query param. Frontend callers must send X-User-ID; when a
// body author is also present the two must agree.
func ResolveAuthorFromRequest(r *http.Request, bodyAuthor string) (string, int, string) {
	role := r.Header.Get("X-Role-Name")
	header := strings.TrimSpace(r.Header.Get("X-User-ID"))

	if role == "backend" || role == "admin" {
		for _, a := range []string{bodyAuthor, header, strings.TrimSpace(r.URL.Query().Get("author"))} {
			if a == "" {
				continue
			}
			if ok, msg := validateAuthor(a); !ok {
				logger.Warn("invalid_backend_author", zap.String("user", a), zap.String("path", r.URL.Path))
				return "", http.StatusBadRequest, msg
			}
			return a, 0, ""
		}
		logger.Warn("backend_missing_author", zap.String("remote", r.RemoteAddr), zap.String("path", r.URL.Path))
		return "", http.StatusBadRequest, "author required for backend requests"
	}

	if header == "" {
		logger.Warn("missing_author_header", zap.String("role", role), zap.String("path", r.URL.Path))
		return "", http.StatusUnauthorized, "missing X-User-ID header"
	}
	if ok, msg := validateAuthor(header); !ok {
		return "", http.StatusBadRequest, msg
	}
	if bodyAuthor != "" && bodyAuthor != header {
		logger.Warn("author_mismatch_header_body",
			zap.String("header", header), zap.String("body", bodyAuthor), zap.String("path", r.URL.Path))
		return "", http.StatusForbidden, "author mismatch between header and body"
	}
	return header, 0, ""
}
