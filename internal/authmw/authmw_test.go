package authmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected string
		header   string
		want     int
	}{
		{"valid", "secret-token-123", "Bearer secret-token-123", http.StatusOK},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"basic auth", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"lowercase bearer", "secret", "bearer secret", http.StatusUnauthorized},
		{"no prefix", "secret", "secret", http.StatusUnauthorized},
		{"wrong token", "correct-token", "Bearer wrong-token", http.StatusUnauthorized},
		{"partial match", "correct-token", "Bearer correct", http.StatusUnauthorized},
		{"token with suffix", "correct-token", "Bearer correct-token-extra", http.StatusUnauthorized},
		{"empty configured token", "", "Bearer ", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			BearerToken(tt.expected)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
