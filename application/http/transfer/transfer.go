package transfer

import (
	"strings"

	"github.com/pkg/errors"
)

type Coding string

const (
	CodingChunked  Coding = "chunked"
	CodingIdentity Coding = "identity"
)

var ErrUnsupportedCoding = errors.New("coding is unsupported")

// ParseCodings converts Transfer-Encoding list elements into codings.
// Only chunked is decodable by this package. "identity" elements are dropped.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.1
func ParseCodings(tokens []string) ([]Coding, error) {
	codings := make([]Coding, 0, len(tokens))
	for _, t := range tokens {
		switch c := Coding(strings.ToLower(t)); c {
		case CodingIdentity:
		case CodingChunked:
			codings = append(codings, c)
		default:
			return nil, errors.Wrapf(ErrUnsupportedCoding, "%q", t)
		}
	}
	return codings, nil
}

// IsChunked reports whether chunked is the final coding.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.4.1
func IsChunked(codings []Coding) bool {
	return len(codings) > 0 && codings[len(codings)-1] == CodingChunked
}
