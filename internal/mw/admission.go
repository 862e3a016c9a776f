package mw

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/3xpluto/go-echo-server/internal/httpx"
)

var ErrOverloaded = errors.New("too many requests in flight and queued")

// Admission bounds concurrent work: at most maxInFlight requests run and at
// most maxPending wait for a slot, in arrival order.
type Admission struct {
	sem         *semaphore.Weighted
	maxInFlight int64
	maxPending  int64

	inFlight atomic.Int64
	pending  atomic.Int64
	rejected atomic.Int64
}

func NewAdmission(maxInFlight, maxPending int) *Admission {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if maxPending < 0 {
		maxPending = 0
	}
	return &Admission{
		sem:         semaphore.NewWeighted(int64(maxInFlight)),
		maxInFlight: int64(maxInFlight),
		maxPending:  int64(maxPending),
	}
}

// Acquire takes a slot, queueing if none is free. It fails with
// ErrOverloaded when the queue is full, or with ctx.Err() if the caller
// gives up while queued. Every nil return must be paired with Release.
func (a *Admission) Acquire(ctx context.Context) error {
	if a.sem.TryAcquire(1) {
		a.inFlight.Add(1)
		return nil
	}
	if a.pending.Add(1) > a.maxPending {
		a.pending.Add(-1)
		a.rejected.Add(1)
		return ErrOverloaded
	}
	err := a.sem.Acquire(ctx, 1)
	a.pending.Add(-1)
	if err != nil {
		return err
	}
	a.inFlight.Add(1)
	return nil
}

func (a *Admission) Release() {
	a.inFlight.Add(-1)
	a.sem.Release(1)
}

type AdmissionStats struct {
	MaxInFlight int64 `json:"max_in_flight"`
	MaxPending  int64 `json:"max_pending"`
	InFlight    int64 `json:"in_flight"`
	Pending     int64 `json:"pending"`
	Rejected    int64 `json:"rejected_total"`
}

func (a *Admission) Stats() AdmissionStats {
	return AdmissionStats{
		MaxInFlight: a.maxInFlight,
		MaxPending:  a.maxPending,
		InFlight:    a.inFlight.Load(),
		Pending:     a.pending.Load(),
		Rejected:    a.rejected.Load(),
	}
}

// Admit gates next behind a. Overflow is answered with 503; a request whose
// client leaves while queued gets no response.
func Admit(a *Admission, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Acquire(r.Context()); err != nil {
			if errors.Is(err, ErrOverloaded) {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
					"error":         "overloaded",
					"message":       err.Error(),
					"max_in_flight": a.maxInFlight,
					"max_pending":   a.maxPending,
				})
			}
			return
		}
		defer a.Release()
		next.ServeHTTP(w, r)
	})
}
