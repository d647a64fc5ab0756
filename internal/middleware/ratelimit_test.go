package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(t *testing.T, rps float64, burst int) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return RateLimiter(ctx, RateLimitConfig{RequestsPerSecond: rps, Burst: burst})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	h := limitedHandler(t, 1, 3)

	for i := range 3 {
		rec := hit(h, "10.1.1.1:4000")
		require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := hit(h, "10.1.1.1:4001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimiter_BucketsArePerClient(t *testing.T) {
	h := limitedHandler(t, 1, 1)

	require.Equal(t, http.StatusNoContent, hit(h, "10.1.1.1:4000").Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.1.1.1:4000").Code)
	assert.Equal(t, http.StatusNoContent, hit(h, "10.1.1.2:4000").Code)
}

func TestLimiterSet_Evict(t *testing.T) {
	set := &limiterSet{cfg: RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute}, clients: map[string]*clientBucket{}}
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	set.get("idle", t0)
	set.get("recent", t0.Add(45*time.Second))

	set.evict(t0.Add(80 * time.Second))
	assert.NotContains(t, set.clients, "idle")
	assert.Contains(t, set.clients, "recent")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		forwarded  string
		want       string
	}{
		{remoteAddr: "192.0.2.7:5555", want: "192.0.2.7"},
		{remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{remoteAddr: "192.0.2.7:5555", forwarded: "198.51.100.9", want: "192.0.2.7"},
		{remoteAddr: "192.0.2.8", want: "192.0.2.8"},
	}
	for _, tt := range tests {
		t.Run(tt.remoteAddr+"/"+tt.forwarded, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
