package body

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// DefaultChunkSize is the chunk capacity used when the body length is
// unknown or larger than it.
const DefaultChunkSize = 8 * 1024

var (
	ErrClosed        = errors.New("body transport is closed")
	ErrNotReplayable = errors.New("body source is not replayable")
)

// ConsistencyError reports a source breaking its contract.
// It is fatal for the exchange.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "body source consistency: " + e.Reason
}

func consistencyErrorf(format string, args ...any) error {
	return &ConsistencyError{Reason: fmt.Sprintf(format, args...)}
}

// ChunkedTransport adapts a [Source] into transport-sized chunks.
// It owns the source: closing the transport closes the source once.
type ChunkedTransport struct {
	src       Source
	length    int64
	chunkSize int

	mu         sync.Mutex
	progress   uint64
	endOfInput bool
	closed     bool

	closeOnce sync.Once
	closeErr  error
}

func NewChunkedTransport(src Source) *ChunkedTransport {
	length := src.ContentLength()

	size := DefaultChunkSize
	if length > 0 && length < DefaultChunkSize {
		size = int(length)
	}

	return &ChunkedTransport{src: src, length: length, chunkSize: size}
}

// ReadChunk pulls the next chunk from the source.
//
// ok is false when there is nothing to deliver: either the input ended
// (see [ChunkedTransport.IsEndOfInput]) or the source suspended.
// The chunk delivered with the end of input may be empty.
func (t *ChunkedTransport) ReadChunk() (chunk []byte, ok bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, false, ErrClosed
	}
	if t.endOfInput {
		return nil, false, nil
	}

	buf := make([]byte, t.chunkSize)
	n, state, err := t.src.TransferTo(buf)
	if err != nil {
		return nil, false, errors.Wrap(err, "transferring body")
	}
	if n < 0 || n > len(buf) {
		return nil, false, consistencyErrorf("transferred %d bytes into a %d byte chunk", n, len(buf))
	}

	switch state {
	case Suspend:
		if n > 0 {
			return nil, false, consistencyErrorf("%d bytes transferred with %s", n, state)
		}
		return nil, false, nil
	case Continue, Stop:
	default:
		return nil, false, consistencyErrorf("unknown chunk state %s", state)
	}

	if t.length > 0 && t.progress+uint64(n) > uint64(t.length) {
		return nil, false, consistencyErrorf("progress %d exceeds declared length %d", t.progress+uint64(n), t.length)
	}
	t.progress += uint64(n)

	if state == Stop {
		t.endOfInput = true
	}
	return buf[:n], true, nil
}

func (t *ChunkedTransport) IsEndOfInput() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endOfInput
}

// Progress returns the number of bytes delivered so far.
func (t *ChunkedTransport) Progress() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Length returns the declared length of the source, or [UnknownLength].
func (t *ChunkedTransport) Length() int64 { return t.length }

func (t *ChunkedTransport) ChunkSize() int { return t.chunkSize }

// Ready returns the source's readiness channel, or nil when the source
// doesn't implement [Notifier].
func (t *ChunkedTransport) Ready() <-chan struct{} {
	if n, ok := t.src.(Notifier); ok {
		return n.Ready()
	}
	return nil
}

// Close releases the source. Only the first call closes it;
// later calls return nil.
func (t *ChunkedTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		t.closeErr = t.src.Close()
	})

	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.closeErr
	t.closeErr = nil
	return err
}
