package core

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSMiddleware answers preflight requests and decorates API responses with
// CORS headers for allowed origins. Origins may be exact, "*", a wildcard
// subdomain ("https://*.example.com") or a wildcard port ("http://localhost:*").
//
// Preflight requests from disallowed origins still receive 204 without any
// Access-Control headers, which browsers treat as a rejection.
func CORSMiddleware(config CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(origin, config.AllowedOrigins) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				if config.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if methods != "" {
					h.Set("Access-Control-Allow-Methods", methods)
				}
				if headers != "" {
					h.Set("Access-Control-Allow-Headers", headers)
				}
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
				if config.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed reports whether origin matches any allowed pattern.
// An empty origin is a same-origin request and needs no CORS headers.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, pattern := range allowed {
		switch {
		case pattern == "*", pattern == origin:
			return true
		case strings.Contains(pattern, "*."):
			if matchWildcardSubdomain(origin, pattern) {
				return true
			}
		case strings.HasSuffix(pattern, ":*"):
			if strings.HasPrefix(origin, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		}
	}
	return false
}

// matchWildcardSubdomain matches "https://api.example.com" against "https://*.example.com".
// The bare root domain does not match.
func matchWildcardSubdomain(origin, pattern string) bool {
	idx := strings.Index(pattern, "*.")
	prefix, suffix := pattern[:idx], pattern[idx+1:] // suffix keeps the leading dot
	if !strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
		return false
	}
	sub := strings.TrimSuffix(strings.TrimPrefix(origin, prefix), suffix)
	return sub != "" && !strings.ContainsAny(sub, "/:")
}
