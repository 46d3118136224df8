package util

import (
	"net/http/httptest"
	"testing"
)

func TestSafeTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"shorter than limit", "short", 10, "short"},
		{"exactly at limit", "12345", 5, "12345"},
		{"truncated", "very-long-token-abc123", 8, "very-lon"},
		{"zero limit", "abc", 0, ""},
		{"negative limit", "abc", -1, ""},
		{"empty string", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeTruncate(tt.in, tt.maxLen); got != tt.want {
				t.Errorf("SafeTruncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		trustProxy bool
		want       string
	}{
		{"remote addr only", "192.0.2.10:4567", "", "", false, "192.0.2.10"},
		{"forwarded ignored without trust", "192.0.2.10:4567", "198.51.100.1", "", false, "192.0.2.10"},
		{"forwarded honored with trust", "192.0.2.10:4567", "198.51.100.1", "", true, "198.51.100.1"},
		{"first forwarded hop wins", "192.0.2.10:4567", "198.51.100.1, 203.0.113.9", "", true, "198.51.100.1"},
		{"real ip fallback", "192.0.2.10:4567", "", "198.51.100.2", true, "198.51.100.2"},
		{"garbage forwarded falls through", "192.0.2.10:4567", "not-an-ip", "", true, "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
