package mw

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3xpluto/go-echo-server/internal/logging"
	"github.com/3xpluto/go-echo-server/internal/netx"
	"github.com/3xpluto/go-echo-server/internal/ratelimit"
)

func TestIPResolverPrefersRealIP(t *testing.T) {
	r := IPResolver{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	req.Header.Set("X-Real-Ip", "198.51.100.4")

	assert.Equal(t, "198.51.100.4", r.ClientIP(req))
}

func TestIPResolverFallsBackToXFFThenPeer(t *testing.T) {
	r := IPResolver{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	assert.Equal(t, "203.0.113.9, 10.1.2.3", r.ClientIP(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.1.2.3:1234", r.ClientIP(req))
}

func TestIPResolverTrustedProxyUsesXFF(t *testing.T) {
	set, err := netx.ParseCIDRSet([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	r := IPResolver{Trusted: set}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	assert.Equal(t, "203.0.113.9", r.ClientIP(req))
}

func TestIPResolverUntrustedIgnoresForwardedHeaders(t *testing.T) {
	set, err := netx.ParseCIDRSet([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	r := IPResolver{Trusted: set}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-Real-Ip", "203.0.113.10")

	assert.Equal(t, "192.168.1.5:1234", r.ClientIP(req))
}

func TestRateLimitRejectsWith429(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(time.Minute, time.Minute)
	defer limiter.Close()

	h := RateLimit(limiter, IPResolver{}, RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}, logging.Discard(),
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateKeyIgnoresForwardedHeadersWithoutTrustedProxies(t *testing.T) {
	r := IPResolver{}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-Real-Ip", "203.0.113.10")

	assert.Equal(t, "192.0.2.1", r.RateKey(req))
}

func TestRateKeyTrustedProxyUsesFirstForwardedAddr(t *testing.T) {
	set, err := netx.ParseCIDRSet([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	r := IPResolver{Trusted: set}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")
	assert.Equal(t, "203.0.113.9", r.RateKey(req))

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	req.Header.Set("X-Real-Ip", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", r.RateKey(req))

	req.Header.Del("X-Real-Ip")
	assert.Equal(t, "10.1.2.3", r.RateKey(req))

	req.RemoteAddr = "192.168.1.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "192.168.1.5", r.RateKey(req))
}

func TestRateLimitRotatingForwardedForSharesPeerBucket(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(time.Minute, time.Minute)
	defer limiter.Close()

	h := RateLimit(limiter, IPResolver{}, RateLimitConfig{Enabled: true, RPS: 1, Burst: 1}, logging.Discard(),
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("192.0.2.1:%d", 1000+i)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.9.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestRateLimitDisabledIsPassThrough(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := RateLimit(nil, IPResolver{}, RateLimitConfig{}, logging.Discard(), next)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTrimFloat(t *testing.T) {
	assert.Equal(t, "5", trimFloat(5))
	assert.Equal(t, "2.5", trimFloat(2.5))
	assert.Equal(t, "0", trimFloat(0))
}
