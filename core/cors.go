package core

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSMiddleware answers preflight requests and decorates responses with
// CORS headers for origins accepted by the config. It is a pass-through when
// CORS is disabled.
//
// Supported origin patterns:
//   - "*" for every origin
//   - "https://*.example.com" for any subdomain
//   - "http://localhost:*" for any port
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config == nil || !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ApplyCORS(w, r, config)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ApplyCORS writes CORS headers for the request origin when it is allowed.
func ApplyCORS(w http.ResponseWriter, r *http.Request, config *CORSConfig) {
	if config == nil || !config.Enabled {
		return
	}

	origin := r.Header.Get("Origin")
	if !isOriginAllowed(origin, config.AllowedOrigins) {
		return
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")

	if config.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if len(config.AllowedMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(config.AllowedMethods, ", "))
	}
	if len(config.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(config.AllowedHeaders, ", "))
	}
	if len(config.ExposedHeaders) > 0 {
		h.Set("Access-Control-Expose-Headers", strings.Join(config.ExposedHeaders, ", "))
	}
	if config.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
	}
}

// isOriginAllowed matches an Origin header against the allow list.
// An empty origin is a same-origin request and never gets CORS headers.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		switch {
		case allowed == "*", allowed == origin:
			return true
		case strings.Contains(allowed, "*."):
			idx := strings.Index(allowed, "*.")
			prefix, suffix := allowed[:idx], allowed[idx+1:] // suffix keeps the leading dot
			if !strings.HasPrefix(origin, prefix) || !strings.HasSuffix(origin, suffix) {
				continue
			}
			// the wildcard must stand for at least one label
			if len(origin) > len(prefix)+len(suffix) {
				return true
			}
		case strings.HasSuffix(allowed, ":*"):
			if strings.HasPrefix(origin, strings.TrimSuffix(allowed, "*")) {
				return true
			}
		}
	}

	return false
}
