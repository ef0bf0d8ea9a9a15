package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_EmptyKeys_PassThrough(t *testing.T) {
	for _, keys := range [][]string{nil, {"", ""}} {
		handler := APIKeyMiddleware("", keys)(okHandler())

		req := httptest.NewRequest("POST", "/ingest", http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("keys %q: got %d, want %d", keys, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	handler := APIKeyMiddleware("", []string{"secret"})(okHandler())

	req := httptest.NewRequest("POST", "/ingest", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing header: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != CodeUnauthorized {
		t.Errorf("error code: got %s, want %s", errResp.Code, CodeUnauthorized)
	}
}

func TestAuthMiddleware_InvalidKey_401(t *testing.T) {
	handler := APIKeyMiddleware("", []string{"secret"})(okHandler())

	req := httptest.NewRequest("POST", "/ingest", http.NoBody)
	req.Header.Set(DefaultAuthHeader, "wrong-key")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid key: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_MultipleKeys(t *testing.T) {
	handler := APIKeyMiddleware("", []string{"key1", "key2"})(okHandler())

	for _, key := range []string{"key1", "key2"} {
		req := httptest.NewRequest("POST", "/ingest", http.NoBody)
		req.Header.Set(DefaultAuthHeader, key)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("key %s: got %d, want %d", key, rr.Code, http.StatusOK)
		}
	}
}

func TestAuthMiddleware_CustomHeader(t *testing.T) {
	handler := APIKeyMiddleware("X-Sync-Token", []string{"secret"})(okHandler())

	req := httptest.NewRequest("POST", "/sync", http.NoBody)
	req.Header.Set(DefaultAuthHeader, "secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("default header must be ignored when a custom one is set, got %d", rr.Code)
	}

	req.Header.Set("X-Sync-Token", "secret")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("custom header: got %d, want %d", rr.Code, http.StatusOK)
	}
}
