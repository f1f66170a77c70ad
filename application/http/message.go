package http

import (
	"bytes"
	"strconv"

	"http-exchange/application/util/rule"

	"github.com/pkg/errors"
)

// [Major, Minor]
type Version [2]uint

var (
	Version1_0 = Version{1, 0}
	Version1_1 = Version{1, 1}
)

// ParseVersion parses http version text(e.g. "HTTP/1.1") into [Version].
func ParseVersion(b []byte) (Version, error) {
	rest, found := bytes.CutPrefix(b, []byte("HTTP/"))
	if !found {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	first, second, found := bytes.Cut(rest, []byte{'.'})
	if !found {
		return Version{}, errors.Errorf("dot seperator not found on version: %s", b)
	}

	major, err1 := strconv.ParseUint(string(first), 10, 32)
	minor, err2 := strconv.ParseUint(string(second), 10, 32)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", b)
	}

	return Version{uint(major), uint(minor)}, nil
}

// Less reports whether ver is older than other.
func (ver Version) Less(other Version) bool {
	if ver[0] != other[0] {
		return ver[0] < other[0]
	}
	return ver[1] < other[1]
}

func (ver Version) Text() []byte {
	b := make([]byte, 0, len("HTTP/1.1"))
	b = append(b, "HTTP/"...)
	b = strconv.AppendUint(b, uint64(ver[0]), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(ver[1]), 10)
	return b
}

func (ver Version) String() string { return string(ver.Text()) }

type Field struct{ Name, Value string }

func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Errorf("colon seperator not found on header: %q", fieldLine)
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	if !rule.IsValidToken(string(name)) {
		return Field{}, errors.Errorf("field name is not a valid token: %q", name)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = bytes.Trim(value, string(rule.OWS))

	return Field{Name: string(name), Value: string(value)}, nil
}

func (f Field) Text() []byte {
	b := make([]byte, 0, len(f.Name)+len(f.Value)+2)
	b = append(b, f.Name...)
	b = append(b, ": "...)
	b = append(b, f.Value...)
	return b
}

// RequestHead is the request line followed by its field lines.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3
type RequestHead struct {
	Method  string
	Target  string
	Version Version
	Fields  []Field
}

// ResponseHead is the status line followed by its field lines.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-4
type ResponseHead struct {
	Version      Version
	StatusCode   uint
	ReasonPhrase string
	Fields       []Field
}
