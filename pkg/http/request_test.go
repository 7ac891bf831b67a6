package http_test

import (
	"net/http/httptest"
	"testing"

	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIPConfig_RejectsGarbage(t *testing.T) {
	_, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "not-a-cidr"})
	assert.Error(t, err)

	cfg, err := pkghttp.NewIPConfig([]string{"", " 127.0.0.1 "})
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestExtractClientIP(t *testing.T) {
	cfg, err := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "127.0.0.1"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		config     *pkghttp.IPConfig
		want       string
	}{
		{
			name:       "direct client ignores spoofed headers",
			remoteAddr: "203.0.113.10:54321",
			xff:        "1.2.3.4",
			xri:        "192.168.1.1",
			config:     cfg,
			want:       "203.0.113.10",
		},
		{
			name:       "trusted proxy uses forwarded client",
			remoteAddr: "10.0.0.5:443",
			xff:        "203.0.113.42",
			config:     cfg,
			want:       "203.0.113.42",
		},
		{
			name:       "spoofed leftmost hop is skipped",
			remoteAddr: "10.0.0.5:443",
			xff:        "1.2.3.4, 198.51.100.7, 10.0.0.9",
			config:     cfg,
			want:       "198.51.100.7",
		},
		{
			name:       "chain of trusted proxies returns leftmost",
			remoteAddr: "10.0.0.5:443",
			xff:        "10.1.1.1, 10.0.0.9",
			config:     cfg,
			want:       "10.1.1.1",
		},
		{
			name:       "falls back to X-Real-IP",
			remoteAddr: "127.0.0.1:8080",
			xri:        "198.51.100.9",
			config:     cfg,
			want:       "198.51.100.9",
		},
		{
			name:       "nil config trusts nobody",
			remoteAddr: "10.0.0.5:443",
			xff:        "203.0.113.42",
			want:       "10.0.0.5",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.10",
			config:     cfg,
			want:       "203.0.113.10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}
