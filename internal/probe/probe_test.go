package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3xpluto/go-echo-server/internal/config"
	"github.com/3xpluto/go-echo-server/internal/logging"
	"github.com/3xpluto/go-echo-server/internal/server"
)

func startEcho(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := server.New(server.Options{Config: config.Default(), Log: logging.Discard()})
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRunReturnsCompletionOrder(t *testing.T) {
	ts := startEcho(t)
	reqs, err := ParseDelays("300, 50, 175")
	require.NoError(t, err)

	c := NewClient(ts.URL+"/", len(reqs))
	results := c.Run(context.Background(), reqs)
	require.Len(t, results, 3)

	var got []int64
	ids := map[string]bool{}
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, http.StatusOK, r.StatusCode)
		assert.NotEmpty(t, r.ResponseTime)
		assert.False(t, ids[r.RequestID], "request ids are unique")
		ids[r.RequestID] = true
		got = append(got, r.Request.DelayMs)
	}
	assert.Equal(t, []int64{50, 175, 300}, got)
}

func TestDoReportsStatus(t *testing.T) {
	ts := startEcho(t)
	c := NewClient(ts.URL, 1)

	r := c.Do(context.Background(), Request{Status: 502, DelayMs: 10})
	require.NoError(t, r.Err)
	assert.Equal(t, http.StatusBadGateway, r.StatusCode)
	assert.GreaterOrEqual(t, r.Elapsed, 10*time.Millisecond)
}

func TestDoHonoursContext(t *testing.T) {
	ts := startEcho(t)
	c := NewClient(ts.URL, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := c.Do(ctx, Request{DelayMs: 2000})
	assert.Error(t, r.Err)
}

func TestParseDelays(t *testing.T) {
	reqs, err := ParseDelays("1,,2")
	require.NoError(t, err)
	assert.Len(t, reqs, 2)

	_, err = ParseDelays("x")
	assert.Error(t, err)
	_, err = ParseDelays("")
	assert.Error(t, err)
}
