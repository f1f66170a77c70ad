package body

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestThrottle(t *testing.T) {
	mock := clock.NewMock()
	limiter := rate.NewLimiter(rate.Limit(4), 4) // 4 bytes per second.

	src := Throttle(String(strings.Repeat("t", 10)), limiter, mock)
	assert.Equal(t, int64(10), src.ContentLength())

	buf := make([]byte, 10)
	n, state, err := src.TransferTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, Continue, state)

	n, state, err = src.TransferTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, Suspend, state)

	ready := src.(Notifier).Ready()
	select {
	case <-ready:
		t.Fatal("ready before tokens are refilled")
	default:
	}

	mock.Add(time.Second)
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("ready never fired")
	}

	n, state, err = src.TransferTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, Continue, state)

	require.NoError(t, src.Close())
}

func TestThrottleWithChunkedTransport(t *testing.T) {
	mock := clock.NewMock()
	limiter := rate.NewLimiter(rate.Limit(100), 100)

	bt := NewChunkedTransport(Throttle(String(strings.Repeat("z", 250)), limiter, mock))
	require.NotNil(t, bt.Ready())

	var got int
	for !bt.IsEndOfInput() {
		chunk, ok, err := bt.ReadChunk()
		require.NoError(t, err)
		if !ok {
			assert.Equal(t, uint64(got), bt.Progress())
			mock.Add(time.Second)
			continue
		}
		got += len(chunk)
	}
	assert.Equal(t, 250, got)
	assert.NoError(t, bt.Close())
}

func TestThrottleReplay(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1000), 1000)

	src := Throttle(String("abc"), limiter, clock.New())
	replayed, ok, err := Replay(src)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", drain(t, replayed, 8))

	_, _, err = Replay(Throttle(Reader(strings.NewReader("x"), 1), limiter, clock.New()))
	assert.ErrorIs(t, err, ErrNotReplayable)
}

func TestThrottleReadyBeforeSuspend(t *testing.T) {
	src := Throttle(String("a"), rate.NewLimiter(1, 1), clock.NewMock())
	select {
	case <-src.(Notifier).Ready():
	default:
		t.Fatal("ready should be closed before any suspend")
	}
}

func TestThrottleSourceSuspends(t *testing.T) {
	mock := clock.NewMock()
	limiter := rate.NewLimiter(rate.Limit(100), 100)

	calls := 0
	src := Throttle(Stream(UnknownLength, func(p []byte) (int, ChunkState, error) {
		calls++
		if calls == 1 {
			return 0, Suspend, nil
		}
		return copy(p, "ok"), Stop, nil
	}), limiter, mock)

	n, state, err := src.TransferTo(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, Suspend, state)

	// The stream can't notify, so there is nothing to wait on.
	assert.Nil(t, src.(Notifier).Ready())

	n, state, err = src.TransferTo(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, Stop, state)
}

func TestThrottleForwardsInnerReady(t *testing.T) {
	mock := clock.NewMock()
	inner := Throttle(String("abcd"), rate.NewLimiter(rate.Limit(2), 2), mock)
	outer := Throttle(inner, rate.NewLimiter(rate.Limit(100), 100), mock)

	buf := make([]byte, 8)
	n, state, err := outer.TransferTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, Continue, state)

	n, state, err = outer.TransferTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, Suspend, state)

	ready := outer.(Notifier).Ready()
	require.NotNil(t, ready)
	select {
	case <-ready:
		t.Fatal("ready before the inner source refilled")
	default:
	}

	mock.Add(time.Second)
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("ready never fired")
	}

	n, state, err = outer.TransferTo(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, Stop, state)
}
