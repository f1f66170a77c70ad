package http

import (
	"bufio"
	"bytes"
	"strconv"

	"http-exchange/application/util/rule"
	bytesutil "http-exchange/util/bytes"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF specifies wheter a single LF character should be recognized as a valid line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// LenientWhitespace replaces all [rule.Whitespaces] into [rule.SP].
	// And also trims preceding and trailinig whitespace.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	LenientWhitespace bool

	// MaxFieldLineLength sets the limit of field line length on headers.
	MaxFieldLineLength uint

	// MaxFieldCount sets the limit of field lines in a single head.
	MaxFieldCount uint

	// MaxStartLineLength sets the limit of request or status line length.
	// Recommended: >= 8000
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-5
	MaxStartLineLength uint
}

var DefaultDecodeOptions = DecodeOptions{
	AllowSoleLF:        false,
	LenientWhitespace:  false,
	MaxFieldLineLength: 8 * 1024,
	MaxFieldCount:      128,
	MaxStartLineLength: 8 * 1024,
}

var (
	ErrMissingCRBeforeLF    = errors.New("missing CR before LF")
	ErrStartLineTooLong     = errors.New("start line length exceeds limit")
	ErrFieldLineTooLong     = errors.New("field line length exceeds limit")
	ErrTooManyFields        = errors.New("too many field lines")
	ErrMalformedFieldLine   = errors.New("field line is malformed")
	ErrMalformedRequestLine = errors.New("request line is malformed")
	ErrMalformedStatusLine  = errors.New("status line is malformed")
)

// Decoder reads message heads from br.
// The body, if any, is left unread in br for the caller to frame.
type Decoder struct {
	br   *bufio.Reader
	opts DecodeOptions
}

func NewDecoder(br *bufio.Reader, opts DecodeOptions) *Decoder {
	return &Decoder{br: br, opts: opts}
}

func (d *Decoder) readLine(limit uint) ([]byte, error) {
	b, err := bytesutil.ReadUntil(d.br, []byte{rule.LF}, limit)
	if err != nil {
		return nil, err
	}

	b = b[:len(b)-1] // Remove LF.

	if !d.opts.AllowSoleLF {
		if len(b) == 0 || b[len(b)-1] != rule.CR {
			return nil, ErrMissingCRBeforeLF
		}
		b = b[:len(b)-1]
	} else {
		b = bytes.TrimSuffix(b, []byte{rule.CR})
	}

	if d.opts.LenientWhitespace {
		for _, c := range rule.Whitespaces {
			b = bytes.ReplaceAll(b, []byte{c}, []byte{rule.SP})
		}
		return bytes.Trim(b, string(rule.SP)), nil
	}

	// A bare CR is replaced with SP.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	return bytes.ReplaceAll(b, []byte{rule.CR}, []byte{rule.SP}), nil
}

// readStartLine skips empty lines preceding the message.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
func (d *Decoder) readStartLine() ([]byte, error) {
	for {
		b, err := d.readLine(d.opts.MaxStartLineLength)
		if err != nil {
			if errors.Is(err, bytesutil.ErrLineTooLong) {
				return nil, ErrStartLineTooLong
			}
			return nil, errors.Wrap(err, "reading line")
		}
		if len(b) > 0 {
			return b, nil
		}
	}
}

func (d *Decoder) decodeFields() ([]Field, error) {
	fields := make([]Field, 0)
	for {
		line, err := d.readLine(d.opts.MaxFieldLineLength)
		if err != nil {
			if errors.Is(err, bytesutil.ErrLineTooLong) {
				return nil, ErrFieldLineTooLong
			}
			return nil, errors.Wrap(err, "reading line")
		}

		if len(line) == 0 {
			return fields, nil
		}

		if d.opts.MaxFieldCount > 0 && uint(len(fields)) >= d.opts.MaxFieldCount {
			return nil, ErrTooManyFields
		}

		field, err := ParseField(line)
		if err != nil {
			return nil, errors.Wrap(ErrMalformedFieldLine, err.Error())
		}
		fields = append(fields, field)
	}
}

func (d *Decoder) DecodeRequestHead() (RequestHead, error) {
	line, err := d.readStartLine()
	if err != nil {
		return RequestHead{}, errors.Wrap(err, "reading request line")
	}

	head, err := parseRequestLine(line)
	if err != nil {
		return RequestHead{}, errors.Wrap(ErrMalformedRequestLine, err.Error())
	}

	if head.Fields, err = d.decodeFields(); err != nil {
		return RequestHead{}, errors.Wrap(err, "decoding fields")
	}

	return head, nil
}

func (d *Decoder) DecodeResponseHead() (ResponseHead, error) {
	line, err := d.readStartLine()
	if err != nil {
		return ResponseHead{}, errors.Wrap(err, "reading status line")
	}

	head, err := parseStatusLine(line)
	if err != nil {
		return ResponseHead{}, errors.Wrap(ErrMalformedStatusLine, err.Error())
	}

	if head.Fields, err = d.decodeFields(); err != nil {
		return ResponseHead{}, errors.Wrap(err, "decoding fields")
	}

	return head, nil
}

func parseRequestLine(line []byte) (RequestHead, error) {
	parts := bytes.Split(line, []byte{rule.SP})
	if len(parts) != 3 {
		return RequestHead{}, errors.New("request line should have 3 parts")
	}

	method := string(parts[0])
	if !rule.IsValidToken(method) {
		return RequestHead{}, errors.New("method is not a valid token")
	}

	target := string(parts[1])
	if len(target) == 0 {
		return RequestHead{}, errors.New("request target should not be empty")
	}

	ver, err := ParseVersion(parts[2])
	if err != nil {
		return RequestHead{}, errors.Wrap(err, "parsing version")
	}

	return RequestHead{Method: method, Target: target, Version: ver}, nil
}

func parseStatusLine(line []byte) (ResponseHead, error) {
	parts := bytes.SplitN(line, []byte{rule.SP}, 3)
	if len(parts) < 2 {
		return ResponseHead{}, errors.New("status line should have at least 2 parts")
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return ResponseHead{}, errors.Wrap(err, "parsing version")
	}

	codeStr := string(parts[1])
	code, err := strconv.ParseUint(codeStr, 10, 64)
	if err != nil || len(codeStr) != 3 {
		return ResponseHead{}, errors.Errorf("status code is malformed: %q", codeStr)
	}

	// reason-phrase is optional.
	var reason string
	if len(parts) == 3 {
		reason = string(parts[2])
	}

	return ResponseHead{Version: ver, StatusCode: uint(code), ReasonPhrase: reason}, nil
}
