package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"http", "http://localhost:3000", ""},
		{"https with path", "https://api.example.com/v1", ""},
		{"ftp", "ftp://example.com", "scheme"},
		{"no scheme", "localhost:3000", "scheme"},
		{"no host", "http://", "hostname"},
		{"whitespace", "http://local host", "whitespace"},
		{"unparseable", "http://[::1", "invalid URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ProxyURL(tt.raw)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.raw, u.String())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
