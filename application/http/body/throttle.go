package body

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

// throttled limits the byte rate of a source. One token is one byte.
type throttled struct {
	src     Source
	limiter *rate.Limiter
	clock   clock.Clock

	mu    sync.Mutex
	ready chan struct{}
	timer *clock.Timer
	// inner is set while the wrapped source itself is suspended.
	inner bool
}

var _ Notifier = (*throttled)(nil)

// Throttle wraps src so it yields at most as many bytes as limiter allows.
// When no token is available it returns [Suspend], and Ready fires once
// tokens are available again. limiter must have a burst of at least 1.
func Throttle(src Source, limiter *rate.Limiter, clk clock.Clock) Source {
	return &throttled{src: src, limiter: limiter, clock: clk}
}

func (t *throttled) ContentLength() int64 { return t.src.ContentLength() }

func (t *throttled) TransferTo(p []byte) (int, ChunkState, error) {
	now := t.clock.Now()

	avail := int(t.limiter.TokensAt(now))
	if avail < 1 {
		t.arm(now)
		return 0, Suspend, nil
	}
	if avail < len(p) {
		p = p[:avail]
	}

	n, state, err := t.src.TransferTo(p)
	if n > 0 {
		t.limiter.AllowN(now, n)
	}
	if err == nil && state == Suspend {
		t.deferToSource()
	}
	return n, state, err
}

// deferToSource hands readiness over to the wrapped source.
func (t *throttled) deferToSource() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.ready = nil
	t.inner = true
}

// arm replaces the ready channel with one closed when a single token
// becomes available.
func (t *throttled) arm(now time.Time) {
	r := t.limiter.ReserveN(now, 1)
	delay := time.Duration(0)
	if r.OK() {
		delay = r.DelayFrom(now)
		r.CancelAt(now)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}

	ch := make(chan struct{})
	t.ready = ch
	t.inner = false
	t.timer = t.clock.AfterFunc(delay, func() { close(ch) })
}

// Ready returns nil when the wrapped source suspended and can't notify,
// so the caller falls back to polling.
func (t *throttled) Ready() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inner {
		if n, ok := t.src.(Notifier); ok {
			return n.Ready()
		}
		return nil
	}
	if t.ready == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.ready
}

func (t *throttled) Close() error {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	return t.src.Close()
}

func (t *throttled) Replay() (Source, error) {
	fresh, ok, err := Replay(t.src)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotReplayable
	}
	return Throttle(fresh, t.limiter, t.clock), nil
}
