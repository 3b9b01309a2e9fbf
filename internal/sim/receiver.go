package sim

import (
	"os"
	"sync"
	"time"
)

// Receiver is an io.ReadCloser that behaves like a GPS receiver on a serial
// line: one burst of sentences per interval, the first one immediately.
type Receiver struct {
	route    Route
	interval time.Duration
	now      func() time.Time

	ticker  *time.Ticker
	done    chan struct{}
	once    sync.Once
	started bool
	pending []byte
}

type Option func(*Receiver)

// WithClock sets the time source used to render bursts.
func WithClock(now func() time.Time) Option {
	return func(r *Receiver) { r.now = now }
}

func NewReceiver(route Route, interval time.Duration, opts ...Option) *Receiver {
	if interval <= 0 {
		interval = time.Second
	}
	r := &Receiver{
		route:    route,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ticker = time.NewTicker(interval)
	return r
}

func (r *Receiver) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.started {
			select {
			case <-r.done:
				return 0, os.ErrClosed
			case <-r.ticker.C:
			}
		}
		r.started = true
		r.pending = Burst(r.route, r.now())
	}
	select {
	case <-r.done:
		return 0, os.ErrClosed
	default:
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Close unblocks a pending Read. It is safe to call more than once.
func (r *Receiver) Close() error {
	r.once.Do(func() {
		r.ticker.Stop()
		close(r.done)
	})
	return nil
}
