package bytesutil

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var ErrLineTooLong = errors.New("line length exceeds limit")

// ReadUntil reads from r until delim. The output will include delim.
// If limit is greater than 0, reading more than limit bytes without
// finding delim results in [ErrLineTooLong].
func ReadUntil(r *bufio.Reader, delim []byte, limit uint) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	for {
		b, err := r.ReadSlice(delim[len(delim)-1])
		buf.Write(b)

		if limit > 0 && uint(buf.Len()) > limit {
			return nil, ErrLineTooLong
		}

		switch {
		case err == nil:
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return nil, io.ErrUnexpectedEOF
		default:
			return nil, err
		}

		if bytes.HasSuffix(buf.Bytes(), delim) {
			return buf.Bytes(), nil
		}
	}
}
