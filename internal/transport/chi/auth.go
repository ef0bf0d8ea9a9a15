package chi

import (
	"crypto/subtle"
	"net/http"
)

// DefaultAuthHeader carries the shared secret.
const DefaultAuthHeader = "X-Internal-API-Key"

// APIKeyMiddleware returns a middleware that requires one of apiKeys in header.
// If apiKeys is empty, authentication is disabled (pass-through).
func APIKeyMiddleware(header string, apiKeys []string) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultAuthHeader
	}
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		// Auth disabled
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if got == "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing "+header+" header")
				return
			}
			if !validKey(keys, []byte(got)) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validKey(keys [][]byte, got []byte) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare(k, got)
	}
	return ok == 1
}
