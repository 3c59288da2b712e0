package service

import (
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/dgallion1/insurspeak/internal/domain"
)

// DefaultMaxRetries is the retry budget when none is configured.
const DefaultMaxRetries = 2

// IsRetryable reports whether err is a transient failure: no response at
// all, rate limiting, or a server-side error.
func IsRetryable(err error) bool {
	var netErr *domain.TransportError
	if errors.As(err, &netErr) {
		return true
	}
	var svcErr *domain.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusTooManyRequests || svcErr.StatusCode >= 500
	}
	return false
}

const (
	maxBackoff = 30 * time.Second

	// Attempts past this shift already exceed maxBackoff.
	maxBackoffShift = 5
)

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := backoffBase(attempt)
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

func backoffBase(attempt int) time.Duration {
	attempt = min(max(attempt, 0), maxBackoffShift)
	return min(time.Duration(1<<uint(attempt))*time.Second, maxBackoff)
}

// CallBudget is the longest a single operation can take with the given
// per-request timeout and retry budget, backoff included.
func CallBudget(timeout time.Duration, maxRetries int) time.Duration {
	maxRetries = max(maxRetries, 0)
	total := time.Duration(maxRetries+1) * timeout
	for attempt := 0; attempt < maxRetries; attempt++ {
		base := backoffBase(attempt)
		total += base + base/2
	}
	return total
}
