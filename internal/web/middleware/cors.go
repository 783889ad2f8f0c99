package middleware

import (
	"net/http"
	"strings"
)

// originSet turns the configured origins into a lookup set.
func originSet(origins []string) map[string]struct{} {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[strings.TrimSuffix(o, "/")] = struct{}{}
	}
	return set
}

// isLocalhostOrigin returns true if the origin is http(s)://localhost:<port>.
func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost:", "http://localhost", "https://localhost:", "https://localhost"} {
		if origin == prefix || strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// isOriginAllowed checks whether a request origin should receive CORS headers.
func isOriginAllowed(origin string, allowed map[string]struct{}) bool {
	if origin == "" {
		return false
	}
	// Always allow localhost for development.
	if isLocalhostOrigin(origin) {
		return true
	}
	_, ok := allowed[origin]
	return ok
}

// CORS returns middleware that handles CORS headers with an origin whitelist.
// Localhost origins are always permitted.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := originSet(origins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if isOriginAllowed(origin, allowed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
