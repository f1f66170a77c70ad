package body

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

type bytesSource struct {
	data []byte
	off  int
}

// Bytes returns a replayable in-memory source. p must not be modified
// afterwards.
func Bytes(p []byte) Source {
	return &bytesSource{data: p}
}

func String(s string) Source {
	return Bytes([]byte(s))
}

func (b *bytesSource) ContentLength() int64 { return int64(len(b.data)) }

func (b *bytesSource) TransferTo(p []byte) (int, ChunkState, error) {
	n := copy(p, b.data[b.off:])
	b.off += n
	if b.off == len(b.data) {
		return n, Stop, nil
	}
	return n, Continue, nil
}

func (b *bytesSource) Close() error { return nil }

func (b *bytesSource) Replay() (Source, error) {
	return Bytes(b.data), nil
}

type readerSource struct {
	r      io.Reader
	length int64
}

// Reader returns a one-shot source reading r. A read from r may block,
// so prefer [Bytes] or [File] when the payload is at hand.
// If r is an [io.Closer], it is closed with the source.
func Reader(r io.Reader, length int64) Source {
	return &readerSource{r: r, length: length}
}

func (rs *readerSource) ContentLength() int64 { return rs.length }

func (rs *readerSource) TransferTo(p []byte) (int, ChunkState, error) {
	n, err := rs.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, Stop, nil
	}
	if err != nil {
		return n, Stop, err
	}
	return n, Continue, nil
}

func (rs *readerSource) Close() error {
	if c, ok := rs.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type fileSource struct {
	path   string
	length int64

	mu     sync.Mutex
	f      *os.File
	closed bool
}

// File returns a replayable source reading the file at path.
// The file is opened on the first transfer.
func File(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "stat body file")
	}
	if info.IsDir() {
		return nil, errors.Errorf("body file %q is a directory", path)
	}
	return &fileSource{path: path, length: info.Size()}, nil
}

func (fs *fileSource) ContentLength() int64 { return fs.length }

func (fs *fileSource) TransferTo(p []byte) (int, ChunkState, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return 0, Stop, os.ErrClosed
	}
	if fs.f == nil {
		f, err := os.Open(fs.path)
		if err != nil {
			return 0, Stop, errors.Wrap(err, "opening body file")
		}
		fs.f = f
	}

	n, err := fs.f.Read(p)
	if errors.Is(err, io.EOF) {
		return n, Stop, nil
	}
	if err != nil {
		return n, Stop, errors.Wrap(err, "reading body file")
	}
	return n, Continue, nil
}

func (fs *fileSource) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.closed = true
	if fs.f == nil {
		return nil
	}
	err := fs.f.Close()
	fs.f = nil
	return err
}

func (fs *fileSource) Replay() (Source, error) {
	return File(fs.path)
}
