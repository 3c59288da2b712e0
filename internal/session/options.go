package session

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Option customizes a store.
type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator sets the generator used for document and entry ids.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

func applyOptions(opts []Option) options {
	o := options{
		now:   time.Now,
		newID: newULID,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// newULID returns a lexically sortable id, monotonic within the process.
func newULID() string {
	return ulid.Make().String()
}
