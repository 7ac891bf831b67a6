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

func TestSecureLogger_RedactsSensitiveParams(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		wantPath string
	}{
		{"callback", "/callback?code=abc&state=xyz", "/callback?code=%5BREDACTED%5D&state=%5BREDACTED%5D"},
		{"catalog search", "/api/v1/assets?search=barcode", "/api/v1/assets?search=barcode"},
		{"no query", "/dashboard", "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			handler := SecureLogger(logger, nil)(okHandler())

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.target, nil))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantPath, entry["path"])
			assert.Equal(t, "INFO", entry["level"])
		})
	}
}

func TestSecureLogger_ServerErrorsLogAtError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.EqualValues(t, http.StatusBadGateway, entry["status"])
}
