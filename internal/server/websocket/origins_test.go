package websocket

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAllowedOrigins_WithEnv(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://example.com,https://app.example.com, http://localhost:3000  ,")

	assert.Equal(t, []string{
		"http://example.com",
		"https://app.example.com",
		"http://localhost:3000",
	}, getAllowedOrigins())
}

func TestGetAllowedOrigins_WithoutEnv(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")

	origins := getAllowedOrigins()
	assert.ElementsMatch(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, origins)
}

func TestCheckOrigin(t *testing.T) {
	saved := AllowedOrigins
	t.Cleanup(func() { AllowedOrigins = saved })
	AllowedOrigins = []string{
		"http://localhost:3000",
		"https://app.example.com",
	}

	tests := []struct {
		name     string
		origin   string
		expected bool
	}{
		{"Allowed", "http://localhost:3000", true},
		{"Second allowed", "https://app.example.com", true},
		{"Not allowed", "http://evil.com", false},
		{"Missing", "", false},
		{"Case sensitive", "http://LOCALHOST:3000", false},
		{"Protocol mismatch", "http://app.example.com", false},
		{"Port mismatch", "http://localhost:8080", false},
		{"Subdomain", "https://sub.app.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.expected, checkOrigin(req))
		})
	}
}
