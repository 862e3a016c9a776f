// Package echo implements the echo routes: query resolution, the timed
// suspension and the client diagnostic headers.
package echo

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultStatus = http.StatusOK

	// MaxDelayMillis caps any requested delay at two minutes.
	MaxDelayMillis = 120_000

	minStatus = 200
	maxStatus = 600
)

var ErrMalformedQuery = errors.New("malformed query parameter")

// Query holds the optional caller-supplied parameters. Nil means absent.
type Query struct {
	Status  *int64
	Timeout *int64 // milliseconds
	Delay   *int64 // milliseconds, lower priority than Timeout
}

// Resolved is the status and delay a request will be answered with.
type Resolved struct {
	Status      int
	DelayMillis uint64
}

func (r Resolved) Delay() time.Duration {
	return time.Duration(r.DelayMillis) * time.Millisecond
}

// ParseQuery decodes status, timeout and delay. A present but non-integer
// value is an ErrMalformedQuery.
func ParseQuery(v url.Values) (Query, error) {
	var q Query
	var err error
	if q.Status, err = intParam(v, "status", 32); err != nil {
		return Query{}, err
	}
	if q.Timeout, err = intParam(v, "timeout", 64); err != nil {
		return Query{}, err
	}
	if q.Delay, err = intParam(v, "delay", 64); err != nil {
		return Query{}, err
	}
	return q, nil
}

func intParam(v url.Values, name string, bits int) (*int64, error) {
	if !v.Has(name) {
		return nil, nil
	}
	n, err := strconv.ParseInt(v.Get(name), 10, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrMalformedQuery, name, v.Get(name))
	}
	return &n, nil
}

// Resolve applies the defaulting and clamping rules. Timeout wins over
// Delay whenever it is present, even if negative. It never fails.
func Resolve(q Query) Resolved {
	status := DefaultStatus
	if q.Status != nil {
		status = int(*q.Status)
	}

	var src int64
	switch {
	case q.Timeout != nil:
		src = *q.Timeout
	case q.Delay != nil:
		src = *q.Delay
	}

	var delay uint64
	switch {
	case src < 0:
		delay = 0
	case src > MaxDelayMillis:
		delay = MaxDelayMillis
	default:
		delay = uint64(src)
	}

	return Resolved{Status: status, DelayMillis: delay}
}

// EffectiveStatus maps statuses outside [200, 600] to 500. Informational
// 1xx codes cannot end a response, so they count as out of range too.
func EffectiveStatus(status int) int {
	if status < minStatus || status > maxStatus {
		return http.StatusInternalServerError
	}
	return status
}
