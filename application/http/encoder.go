package http

import (
	"bufio"
	"strconv"

	"http-exchange/application/util/rule"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

type EncodeOptions struct {
	// UseSoleLF specifies wheter a single LF character should be used as a line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	UseSoleLF bool
}

var DefaultEncodeOptions = EncodeOptions{
	UseSoleLF: false,
}

var ErrInvalidField = errors.New("field is not valid")

// Encoder writes message heads into bw. Bodies are written by the caller
// after the head, through the same writer.
type Encoder struct {
	bw   *bufio.Writer
	opts EncodeOptions
}

func NewEncoder(bw *bufio.Writer, opts EncodeOptions) *Encoder {
	return &Encoder{bw: bw, opts: opts}
}

func (e *Encoder) writeLine(line []byte) error {
	if _, err := e.bw.Write(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	term := rule.CRLF
	if e.opts.UseSoleLF {
		term = term[1:]
	}
	if _, err := e.bw.Write(term); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

func (e *Encoder) encodeFields(fields []Field) error {
	for _, field := range fields {
		if err := ValidateField(field); err != nil {
			return err
		}
		if err := e.writeLine(field.Text()); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// An empty line terminates the head.
	return e.writeLine(nil)
}

// ValidateField rejects field names that are not tokens and values
// carrying bytes that would break framing.
func ValidateField(f Field) error {
	if !httpguts.ValidHeaderFieldName(f.Name) {
		return errors.Wrapf(ErrInvalidField, "name %q", f.Name)
	}
	if !httpguts.ValidHeaderFieldValue(f.Value) {
		return errors.Wrapf(ErrInvalidField, "value of %q", f.Name)
	}
	return nil
}

// EncodeRequestHead writes the head and flushes it.
func (e *Encoder) EncodeRequestHead(head RequestHead) error {
	if !rule.IsValidToken(head.Method) {
		return errors.Errorf("method is not a valid token: %q", head.Method)
	}
	if head.Target == "" {
		return errors.New("request target should not be empty")
	}

	line := make([]byte, 0, len(head.Method)+len(head.Target)+10)
	line = append(line, head.Method...)
	line = append(line, rule.SP)
	line = append(line, head.Target...)
	line = append(line, rule.SP)
	line = append(line, head.Version.Text()...)

	if err := e.writeLine(line); err != nil {
		return errors.Wrap(err, "encoding request line")
	}
	if err := e.encodeFields(head.Fields); err != nil {
		return errors.Wrap(err, "encoding fields")
	}

	return errors.Wrap(e.bw.Flush(), "flushing request head")
}

// EncodeResponseHead writes the head and flushes it.
func (e *Encoder) EncodeResponseHead(head ResponseHead) error {
	line := make([]byte, 0, 16+len(head.ReasonPhrase))
	line = append(line, head.Version.Text()...)
	line = append(line, rule.SP)
	line = strconv.AppendUint(line, uint64(head.StatusCode), 10)
	line = append(line, rule.SP)
	line = append(line, head.ReasonPhrase...)

	if err := e.writeLine(line); err != nil {
		return errors.Wrap(err, "encoding status line")
	}
	if err := e.encodeFields(head.Fields); err != nil {
		return errors.Wrap(err, "encoding fields")
	}

	return errors.Wrap(e.bw.Flush(), "flushing response head")
}
