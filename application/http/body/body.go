// Package body defines request body sources and the chunked transport
// which pulls them in bounded chunks.
//
// A source is pulled, never pushed: each TransferTo call fills at most
// one caller-provided buffer and reports whether more data follows
// ([Continue]), the source cannot make progress right now ([Suspend]),
// or the body ended ([Stop]).
package body

import "fmt"

// ChunkState is the result of a single transfer from a [Source].
type ChunkState uint8

const (
	Continue ChunkState = iota + 1
	Suspend
	Stop
)

func (s ChunkState) String() string {
	switch s {
	case Continue:
		return "CONTINUE"
	case Suspend:
		return "SUSPEND"
	case Stop:
		return "STOP"
	}
	return fmt.Sprintf("ChunkState(%d)", uint8(s))
}

// UnknownLength is returned by [Source.ContentLength] when the total
// length is not known ahead of time.
const UnknownLength int64 = -1

// Source owns exactly one body payload.
type Source interface {
	// ContentLength returns the total length in bytes, or [UnknownLength].
	ContentLength() int64

	// TransferTo writes at most len(p) bytes into p without blocking.
	// Bytes written with [Suspend] are a contract violation.
	TransferTo(p []byte) (n int, state ChunkState, err error)

	Close() error
}

// Replayer is implemented by sources which can produce a fresh copy of
// the same payload, e.g. to resend a body after a redirect.
type Replayer interface {
	Replay() (Source, error)
}

// Notifier is implemented by sources which know when they can resume
// after [Suspend].
type Notifier interface {
	Ready() <-chan struct{}
}

// Replay returns a fresh copy of src, or false if src can't be replayed.
func Replay(src Source) (Source, bool, error) {
	r, ok := src.(Replayer)
	if !ok {
		return nil, false, nil
	}
	fresh, err := r.Replay()
	if err != nil {
		return nil, true, err
	}
	return fresh, true, nil
}
