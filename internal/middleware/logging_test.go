package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantPath string
	}{
		{"plain path", "/apps/a/reviews", "/apps/a/reviews"},
		{"harmless query", "/apps/a/reviews?limit=5", "/apps/a/reviews?limit=5"},
		{"token in query", "/auth/session?access_token=abc", "/auth/session?[REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req.RemoteAddr = "203.0.113.5:4000"
			SecureLogger(logger, nil)(okHandler()).ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "http_request", entry["msg"])
			assert.Equal(t, tt.wantPath, entry["path"])
			assert.Equal(t, "203.0.113.5", entry["client_ip"])
			assert.EqualValues(t, http.StatusOK, entry["status"])
		})
	}
}
