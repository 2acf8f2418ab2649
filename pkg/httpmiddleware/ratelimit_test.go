package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func fixedLimiter(cfg RateLimitConfig, now *time.Time) *RateLimiter {
	rl := NewRateLimiter(cfg)
	rl.now = func() time.Time { return *now }
	return rl
}

func hit(h http.Handler, remote string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Burst(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h := fixedLimiter(RateLimitConfig{Rate: 1, Burst: 3}, &now).Middleware()(okHandler())

	for i := range 3 {
		w := hit(h, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := hit(h, "192.168.1.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:12345").Code, "token refilled")
}

func TestRateLimit_PerClient(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h := fixedLimiter(RateLimitConfig{Rate: 0.1, Burst: 1}, &now).Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678").Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h := fixedLimiter(RateLimitConfig{Rate: 0.1, Burst: 1}, &now).Middleware()(okHandler())

	xff := "203.0.113.50, 70.41.3.18"
	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.1:4444", "X-Forwarded-For", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.2:5555", "X-Forwarded-For", xff).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	now := time.Unix(1700000000, 0)
	h := fixedLimiter(RateLimitConfig{
		Rate:    0.1,
		Burst:   1,
		KeyFunc: func(r *http.Request) string { return r.Header.Get("X-Session-ID") },
	}, &now).Middleware()(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", "X-Session-ID", "a").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.2:1", "X-Session-ID", "a").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1", "X-Session-ID", "b").Code)
}

func TestRateLimit_Sweep(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rl := fixedLimiter(RateLimitConfig{Rate: 0.1, Burst: 1, IdleTTL: time.Minute}, &now)
	h := rl.Middleware()(okHandler())

	hit(h, "10.0.0.1:1")
	now = now.Add(30 * time.Second)
	hit(h, "10.0.0.2:1")

	now = now.Add(45 * time.Second)
	rl.Sweep()
	assert.Len(t, rl.buckets, 1)
	assert.Contains(t, rl.buckets, "10.0.0.2")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:999"
	assert.Equal(t, "10.1.1.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "10.2.2.2")
	assert.Equal(t, "10.2.2.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 10.3.3.3 ,10.4.4.4")
	assert.Equal(t, "10.3.3.3", ClientIP(req))
}
