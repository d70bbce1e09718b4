package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name            string
		allowed         []string
		origin          string
		method          string
		wantOrigin      string
		wantCredentials string
		wantCode        int
	}{
		{"explicit origin", []string{"http://localhost:3000"}, "http://localhost:3000", http.MethodPost, "http://localhost:3000", "true", http.StatusTeapot},
		{"wildcard has no credentials", []string{"*"}, "https://evil.example", http.MethodPost, "https://evil.example", "", http.StatusTeapot},
		{"unknown origin", []string{"http://localhost:3000"}, "https://evil.example", http.MethodGet, "", "", http.StatusTeapot},
		{"preflight short-circuits", []string{"http://localhost:3000"}, "http://localhost:3000", http.MethodOptions, "http://localhost:3000", "true", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/chat", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := w.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCredentials {
				t.Fatalf("Allow-Credentials = %q, want %q", got, tt.wantCredentials)
			}
			if tt.wantOrigin != "" && !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-Tutor-Session-ID") {
				t.Fatal("session header must be allowed")
			}
		})
	}
}
