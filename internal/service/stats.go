package service

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dgallion1/insurspeak/internal/domain"
)

// Failure kinds counted in CallStats.Failures.
const (
	FailureTransport   = "transport"
	FailureRateLimited = "rate_limited"
	FailureServer      = "server_error"
	FailureRejected    = "rejected"
	FailureMalformed   = "malformed"
	FailureCanceled    = "canceled"
	FailureOther       = "other"
)

// latencyWindow is how many recent attempts feed the latency summary.
const latencyWindow = 128

// CallStats summarizes one backend operation since the client was created.
// Calls counts operations; each retry is one extra request attempt.
type CallStats struct {
	Calls     int64            `json:"calls"`
	Succeeded int64            `json:"succeeded"`
	Failed    int64            `json:"failed"`
	Retries   int64            `json:"retries"`
	Failures  map[string]int64 `json:"failures,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	LastCall  *time.Time       `json:"last_call,omitempty"`
	Latency   LatencySummary   `json:"latency"`
}

// LatencySummary covers the most recent request attempts.
type LatencySummary struct {
	Samples int     `json:"samples"`
	AvgMs   float64 `json:"avg_ms"`
	P50Ms   int64   `json:"p50_ms"`
	P95Ms   int64   `json:"p95_ms"`
	MaxMs   int64   `json:"max_ms"`
}

// callRecorder accumulates CallStats for one operation.
type callRecorder struct {
	mu       sync.Mutex
	stats    CallStats
	window   [latencyWindow]int64
	next     int
	recorded int
	now      func() time.Time
}

func newCallRecorder() *callRecorder {
	return &callRecorder{
		stats: CallStats{Failures: map[string]int64{}},
		now:   time.Now,
	}
}

// attempt records one HTTP round trip.
func (r *callRecorder) attempt(d time.Duration, retry bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if retry {
		r.stats.Retries++
	}
	r.window[r.next] = max(d.Milliseconds(), 0)
	r.next = (r.next + 1) % latencyWindow
	r.recorded = min(r.recorded+1, latencyWindow)
}

// finish records the outcome of one operation. ctx is the caller's context,
// used to tell cancellations apart from backend failures.
func (r *callRecorder) finish(ctx context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at := r.now()
	r.stats.Calls++
	r.stats.LastCall = &at
	if err == nil {
		r.stats.Succeeded++
		return
	}
	r.stats.Failed++
	r.stats.Failures[failureKind(ctx, err)]++
	r.stats.LastError = err.Error()
}

func (r *callRecorder) snapshot() CallStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.stats
	out.Failures = make(map[string]int64, len(r.stats.Failures))
	for k, v := range r.stats.Failures {
		out.Failures[k] = v
	}
	if r.stats.LastCall != nil {
		at := *r.stats.LastCall
		out.LastCall = &at
	}
	out.Latency = summarize(r.window[:r.recorded])
	return out
}

// failureKind classifies err by what the backend did, or did not do.
func failureKind(ctx context.Context, err error) string {
	if ctx != nil && ctx.Err() != nil {
		return FailureCanceled
	}
	var dataErr *domain.DataIntegrityError
	if errors.As(err, &dataErr) {
		return FailureMalformed
	}
	var svcErr *domain.ServiceError
	if errors.As(err, &svcErr) {
		switch {
		case svcErr.StatusCode == http.StatusTooManyRequests:
			return FailureRateLimited
		case svcErr.StatusCode >= 500:
			return FailureServer
		case svcErr.StatusCode < 300:
			return FailureMalformed
		}
		return FailureRejected
	}
	var netErr *domain.TransportError
	if errors.As(err, &netErr) {
		return FailureTransport
	}
	return FailureOther
}

func summarize(ms []int64) LatencySummary {
	if len(ms) == 0 {
		return LatencySummary{}
	}
	sorted := slices.Clone(ms)
	slices.Sort(sorted)
	var sum int64
	for _, v := range sorted {
		sum += v
	}
	return LatencySummary{
		Samples: len(sorted),
		AvgMs:   float64(sum) / float64(len(sorted)),
		P50Ms:   nearestRank(sorted, 50),
		P95Ms:   nearestRank(sorted, 95),
		MaxMs:   sorted[len(sorted)-1],
	}
}

// nearestRank returns the smallest sample with at least pct percent of the
// samples at or below it.
func nearestRank(sorted []int64, pct int) int64 {
	rank := (pct*len(sorted) + 99) / 100
	return sorted[min(max(rank, 1), len(sorted))-1]
}
