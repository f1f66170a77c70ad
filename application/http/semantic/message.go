package semantic

import (
	"strconv"
	"strings"

	"http-exchange/application/http/transfer"

	"github.com/pkg/errors"
)

type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodConnect Method = "CONNECT"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9.2.1-3
func (m Method) IsSafe() bool {
	switch m {
	case MethodGet, MethodHead, MethodOptions, MethodTrace:
		return true
	}
	return false
}

var ErrInvalidContentLength = errors.New("invalid Content-Length")

// ContentLength extracts Content-Length from h.
// Repeated lines or list elements must all agree.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.6
func ContentLength(h Headers) (length uint64, ok bool, err error) {
	values := h.Values("Content-Length")
	if len(values) == 0 {
		return 0, false, nil
	}

	for i, raw := range strings.Split(strings.Join(values, ","), ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 63)
		if err != nil {
			return 0, false, errors.Wrapf(ErrInvalidContentLength, "%q", raw)
		}
		if i > 0 && v != length {
			return 0, false, errors.Wrap(ErrInvalidContentLength, "conflicting values")
		}
		length = v
	}

	return length, true, nil
}

// TransferCodings extracts Transfer-Encoding codings from h.
func TransferCodings(h Headers) ([]transfer.Coding, error) {
	return transfer.ParseCodings(h.Tokens("Transfer-Encoding"))
}
