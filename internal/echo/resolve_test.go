package echo

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		q          Query
		wantStatus int
		wantDelay  uint64
	}{
		{"empty", Query{}, 200, 0},
		{"status only", Query{Status: i64(503)}, 503, 0},
		{"timeout", Query{Timeout: i64(250)}, 200, 250},
		{"delay", Query{Delay: i64(75)}, 200, 75},
		{"timeout beats delay", Query{Timeout: i64(10), Delay: i64(5000)}, 200, 10},
		{"negative timeout beats delay", Query{Timeout: i64(-1), Delay: i64(5000)}, 200, 0},
		{"negative delay", Query{Delay: i64(-300)}, 200, 0},
		{"zero timeout", Query{Timeout: i64(0), Delay: i64(20)}, 200, 0},
		{"cap", Query{Timeout: i64(120_001)}, 200, MaxDelayMillis},
		{"exactly cap", Query{Delay: i64(120_000)}, 200, 120_000},
		{"huge", Query{Delay: i64(1 << 62)}, 200, MaxDelayMillis},
		{"status passthrough", Query{Status: i64(42)}, 42, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.q)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantDelay, got.DelayMillis)
		})
	}
}

func TestResolveDelayIsAlwaysBounded(t *testing.T) {
	for _, d := range []int64{-1 << 62, -120_000, -1, 0, 1, 119_999, 120_000, 120_001, 1 << 40} {
		got := Resolve(Query{Timeout: &d})
		assert.LessOrEqual(t, got.DelayMillis, uint64(MaxDelayMillis), "d=%d", d)
		if d >= 0 && d <= MaxDelayMillis {
			assert.Equal(t, uint64(d), got.DelayMillis)
		}
		if d < 0 {
			assert.Zero(t, got.DelayMillis)
		}
	}
}

func TestParseQuery(t *testing.T) {
	v, _ := url.ParseQuery("status=404&timeout=-5&delay=100")
	q, err := ParseQuery(v)
	require.NoError(t, err)
	require.NotNil(t, q.Status)
	require.NotNil(t, q.Timeout)
	require.NotNil(t, q.Delay)
	assert.Equal(t, int64(404), *q.Status)
	assert.Equal(t, int64(-5), *q.Timeout)
	assert.Equal(t, int64(100), *q.Delay)

	q, err = ParseQuery(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, q.Status)
	assert.Nil(t, q.Timeout)
	assert.Nil(t, q.Delay)
}

func TestParseQueryMalformed(t *testing.T) {
	for _, raw := range []string{"status=abc", "timeout=1.5", "delay=", "status=9999999999"} {
		v, _ := url.ParseQuery(raw)
		_, err := ParseQuery(v)
		assert.True(t, errors.Is(err, ErrMalformedQuery), raw)
	}
}

func TestEffectiveStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, EffectiveStatus(200))
	assert.Equal(t, 600, EffectiveStatus(600))
	assert.Equal(t, http.StatusInternalServerError, EffectiveStatus(100))
	assert.Equal(t, http.StatusInternalServerError, EffectiveStatus(101))
	assert.Equal(t, http.StatusInternalServerError, EffectiveStatus(199))
	assert.Equal(t, http.StatusInternalServerError, EffectiveStatus(99))
	assert.Equal(t, http.StatusInternalServerError, EffectiveStatus(601))
	assert.Equal(t, http.StatusInternalServerError, EffectiveStatus(-3))
}
