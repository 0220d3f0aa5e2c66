package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parallelhq/parallel/internal/ctxkeys"
)

func TestRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "no proxy", remoteAddr: "203.0.113.7:5000", want: "203.0.113.7"},
		{name: "untrusted peer ignores forwarded for", remoteAddr: "203.0.113.7:5000", xff: "198.51.100.1", want: "203.0.113.7"},
		{name: "untrusted peer ignores real ip", remoteAddr: "203.0.113.7:5000", xri: "198.51.100.1", want: "203.0.113.7"},
		{name: "trusted peer", trusted: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:5000", xff: "198.51.100.1", want: "198.51.100.1"},
		{name: "spoofed leftmost hop", trusted: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:5000", xff: "1.2.3.4, 198.51.100.1", want: "198.51.100.1"},
		{name: "chained proxies", trusted: []string{"10.0.0.0/8", "192.0.2.9"}, remoteAddr: "10.1.2.3:5000", xff: "198.51.100.1, 192.0.2.9", want: "198.51.100.1"},
		{name: "trusted peer real ip", trusted: []string{"10.1.2.3"}, remoteAddr: "10.1.2.3:5000", xri: "198.51.100.1", want: "198.51.100.1"},
		{name: "garbage header", trusted: []string{"10.0.0.0/8"}, remoteAddr: "10.1.2.3:5000", xff: "not-an-ip", want: "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := RealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
				if ctxkeys.ClientIP(r.Context()) != got {
					t.Fatalf("context ip %q differs from ClientIP %q", ctxkeys.ClientIP(r.Context()), got)
				}
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Fatalf("client ip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitIgnoresRotatedForwardedFor(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	h := RealIP(nil)(RateLimitAI()(ok))

	var last int
	for i := 0; i < 21; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/openrouter-analyze", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("21st request status = %d, want 429", last)
	}
}
