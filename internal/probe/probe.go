// Package probe drives an echo server with concurrent requests and reports
// them in the order they complete.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Request is one probe: the query sent to the echo route.
type Request struct {
	Status  int // 0 means not sent
	DelayMs int64
}

// Result is what came back for a Request.
type Result struct {
	Request      Request
	StatusCode   int
	RequestID    string
	ResponseTime string // server-reported X-Response-Time, milliseconds
	ClientIP     string
	Elapsed      time.Duration
	Err          error
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
}

func NewClient(baseURL string, concurrency int) *Client {
	return &Client{
		HTTP:    &http.Client{Transport: NewTransport(TransportConfig{MaxConnsPerHost: concurrency})},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) url(req Request) string {
	q := url.Values{}
	if req.Status != 0 {
		q.Set("status", strconv.Itoa(req.Status))
	}
	q.Set("delay", strconv.FormatInt(req.DelayMs, 10))
	return c.BaseURL + "/?" + q.Encode()
}

// Do sends a single probe.
func (c *Client) Do(ctx context.Context, req Request) Result {
	res := Result{Request: req}
	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(req), nil)
	if err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	resp, err := c.HTTP.Do(hr)
	if err != nil {
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	res.Elapsed = time.Since(start)

	res.StatusCode = resp.StatusCode
	res.RequestID = resp.Header.Get("X-Request-Id")
	res.ResponseTime = resp.Header.Get("X-Response-Time")
	res.ClientIP = resp.Header.Get("X-Client-iP")
	return res
}

// Run fires every request at once and returns the results in completion
// order.
func (c *Client) Run(ctx context.Context, reqs []Request) []Result {
	out := make([]Result, 0, len(reqs))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, r := range reqs {
		wg.Add(1)
		go func(r Request) {
			defer wg.Done()
			res := c.Do(ctx, r)
			mu.Lock()
			out = append(out, res)
			mu.Unlock()
		}(r)
	}
	wg.Wait()
	return out
}

// ParseDelays reads a comma separated list of millisecond delays.
func ParseDelays(s string) ([]Request, error) {
	var reqs []Request
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", part, err)
		}
		reqs = append(reqs, Request{DelayMs: d})
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no delays given")
	}
	return reqs, nil
}
