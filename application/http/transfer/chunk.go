package transfer

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"http-exchange/application/http"
	"http-exchange/application/util/rule"
	bytesutil "http-exchange/util/bytes"

	"github.com/pkg/errors"
)

// MaxChunkLineLength bounds a chunk-size line including extensions.
const MaxChunkLineLength = 4 * 1024

type Chunk struct {
	Size       uint64
	Extensions [][2]string
}

// ChunkedReader converts chunked http message into byte stream.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
type ChunkedReader struct {
	br    *bufio.Reader
	chunk *Chunk
	read  uint64 // reset for each chunk
	done  bool

	trailers []http.Field
}

var _ io.Reader = (*ChunkedReader)(nil)

// NewChunkedReader reads chunks from br. Nothing past the last chunk's
// trailer section is consumed, so br can be reused for the next message.
func NewChunkedReader(br *bufio.Reader) *ChunkedReader {
	return &ChunkedReader{br: br}
}

func (cr *ChunkedReader) LastChunk() *Chunk { return cr.chunk }

// Trailers returns trailer fields. It is only filled after [io.EOF].
func (cr *ChunkedReader) Trailers() []http.Field { return cr.trailers }

func (cr *ChunkedReader) Read(p []byte) (int, error) {
	if cr.done {
		return 0, io.EOF
	}

	if cr.chunk == nil || cr.read == cr.chunk.Size {
		if err := cr.decodeChunk(); err != nil {
			return 0, errors.Wrap(err, "decoding chunk")
		}

		if cr.chunk.Size == 0 {
			if err := cr.decodeTrailers(); err != nil {
				return 0, errors.Wrap(err, "decoding trailer")
			}
			cr.done = true
			return 0, io.EOF
		}
	}

	if remain := cr.chunk.Size - cr.read; uint64(len(p)) > remain {
		p = p[:remain]
	}

	n, err := cr.br.Read(p)
	cr.read += uint64(n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return n, errors.Wrap(err, "reading chunk data")
	}

	if cr.read == cr.chunk.Size {
		crlf := make([]byte, len(rule.CRLF))
		if _, err := io.ReadFull(cr.br, crlf); err != nil {
			return n, errors.Wrap(err, "reading chunk delimiter")
		}
		if !bytes.Equal(crlf, rule.CRLF) {
			return n, errors.New("CRLF delimiter not found")
		}
	}

	return n, nil
}

func (cr *ChunkedReader) decodeChunk() error {
	line, err := readLine(cr.br)
	if err != nil {
		return err
	}

	parts := bytes.Split(line, []byte{';'})

	sizeRaw := bytes.TrimFunc(parts[0], rule.IsWhitespace)
	size, err := strconv.ParseUint(string(sizeRaw), 16, 64)
	if err != nil {
		return errors.Wrapf(err, "decoding chunk size %q", sizeRaw)
	}

	extensions := make([][2]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		k, v, _ := bytes.Cut(part, []byte{'='})
		// Trim BWS.
		k = bytes.TrimFunc(k, rule.IsWhitespace)
		v = bytes.TrimFunc(v, rule.IsWhitespace)

		extensions = append(extensions, [2]string{string(k), string(rule.Unquote(v))})
	}

	cr.chunk = &Chunk{Size: size, Extensions: extensions}
	cr.read = 0

	return nil
}

func (cr *ChunkedReader) decodeTrailers() error {
	fields := make([]http.Field, 0)
	for {
		line, err := readLine(cr.br)
		if err != nil {
			return errors.Wrap(err, "reading line")
		}
		if len(line) == 0 {
			break
		}

		field, err := http.ParseField(line)
		if err != nil {
			return errors.Wrap(err, "parsing field")
		}
		fields = append(fields, field)
	}

	cr.trailers = fields
	return nil
}

// ChunkedWriter frames each Write as one chunk.
// Close writes the last chunk followed by trailers.
type ChunkedWriter struct {
	w        io.Writer
	header   []byte
	trailers []http.Field
}

var _ io.WriteCloser = (*ChunkedWriter)(nil)

func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w}
}

// SetTrailers sets fields sent after the last chunk.
func (cw *ChunkedWriter) SetTrailers(fields []http.Field) {
	cw.trailers = fields
}

func (cw *ChunkedWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		// A zero length chunk would mean the end of the body.
		return 0, nil
	}

	if err := cw.writeSize(uint64(len(p))); err != nil {
		return 0, err
	}

	n, err = cw.w.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "writing chunk data")
	}
	if n < len(p) {
		return n, io.ErrShortWrite
	}

	if err := writeLine(cw.w, nil); err != nil {
		return n, errors.Wrap(err, "writing chunk delimiter")
	}

	return n, nil
}

func (cw *ChunkedWriter) Close() error {
	if err := cw.writeSize(0); err != nil {
		return err
	}

	for _, field := range cw.trailers {
		if err := writeLine(cw.w, field.Text()); err != nil {
			return errors.Wrap(err, "writing trailer")
		}
	}

	return errors.Wrap(writeLine(cw.w, nil), "writing last trailer line")
}

func (cw *ChunkedWriter) writeSize(size uint64) error {
	cw.header = strconv.AppendUint(cw.header[:0], size, 16)
	return errors.Wrap(writeLine(cw.w, cw.header), "writing chunk header")
}

// readLine reads until CRLF and cuts it.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := bytesutil.ReadUntil(br, rule.CRLF, MaxChunkLineLength)
	if err != nil {
		return nil, err
	}
	return line[:len(line)-2], nil
}

func writeLine(w io.Writer, line []byte) error {
	b := make([]byte, 0, len(line)+len(rule.CRLF))
	b = append(b, line...)
	b = append(b, rule.CRLF...)

	n, err := w.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return err
}
