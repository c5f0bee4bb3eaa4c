package clientip_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockline/stockline/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"remote addr", nil, "192.0.2.10:5123", "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.10", "192.0.2.10"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"cloudflare first", map[string]string{"CF-Connecting-IP": "198.51.100.1", "X-Forwarded-For": "198.51.100.2"}, "10.0.0.1:1", "198.51.100.1"},
		{"forwarded list first valid", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.7, 10.0.0.2"}, "10.0.0.1:1", "198.51.100.7"},
		{"real ip", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "10.0.0.1:1", "203.0.113.9"},
		{"invalid header falls back", map[string]string{"X-Real-IP": "not-an-ip"}, "10.0.0.1:1", "10.0.0.1"},
		{"ipv6 normalized", map[string]string{"X-Real-IP": "2001:DB8:0:0:0:0:0:1"}, "10.0.0.1:1", "2001:db8::1"},
		{"nothing valid", nil, "unix-socket", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(req))
		})
	}
}

func TestResolver_WithHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("CF-Connecting-IP", "198.51.100.1")
	req.Header.Set("Fly-Client-IP", "198.51.100.5")

	assert.Equal(t, "198.51.100.5", clientip.NewResolver(clientip.WithHeaders("Fly-Client-IP")).IP(req))
	assert.Equal(t, "10.0.0.1", clientip.NewResolver(clientip.WithHeaders()).IP(req))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	handler := clientip.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = clientip.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.50", got)
}

func TestExtractors(t *testing.T) {
	t.Parallel()

	ctx := clientip.WithContext(context.Background(), "203.0.113.50")
	ip, ok := clientip.AuditExtractor()(ctx)
	assert.True(t, ok)
	assert.Equal(t, "203.0.113.50", ip)

	_, ok = clientip.AuditExtractor()(context.Background())
	assert.False(t, ok)

	attr, ok := clientip.LoggerExtractor()(ctx)
	assert.True(t, ok)
	assert.Equal(t, "client_ip", attr.Key)
}
