package semantic

import (
	"bytes"
	"strings"

	"http-exchange/application/http"
	"http-exchange/application/util/rule"
)

// Headers is an ordered field multimap. Field lines keep their order and
// duplicates; names are matched case-insensitively.
// The zero value is an empty, usable Headers. Mutations never write into
// a backing array shared with a copy.
type Headers struct{ fields []http.Field }

func NewHeaders(fields ...http.Field) Headers {
	clone := make([]http.Field, len(fields))
	copy(clone, fields)
	return Headers{fields: clone}
}

func (h Headers) Len() int { return len(h.fields) }

// Fields returns a copy of all field lines in order.
func (h Headers) Fields() []http.Field {
	clone := make([]http.Field, len(h.fields))
	copy(clone, h.fields)
	return clone
}

func (h Headers) Clone() Headers { return NewHeaders(h.fields...) }

func (h Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Get returns the value of the first field line named name.
// For list-based fields, use [Headers.Values] or [Headers.Tokens].
func (h Headers) Get(name string) (value string, ok bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns values of every field line named name, in order.
func (h Headers) Values(name string) []string {
	values := make([]string, 0)
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Tokens splits every field line named name as a comma-separated list.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.1
func (h Headers) Tokens(name string) []string {
	tokens := make([]string, 0)
	for _, v := range h.Values(name) {
		tokens = append(tokens, tokenizeFieldValues([]byte(v))...)
	}
	return tokens
}

// Set replaces the first field line named name and removes the others.
// If there is none, the field is appended.
func (h *Headers) Set(name, value string) {
	out := make([]http.Field, 0, len(h.fields)+1)
	replaced := false
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
			continue
		}
		if !replaced {
			out = append(out, http.Field{Name: f.Name, Value: value})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, http.Field{Name: name, Value: value})
	}
	h.fields = out
}

func (h *Headers) Add(name, value string) {
	n := len(h.fields)
	h.fields = append(h.fields[:n:n], http.Field{Name: name, Value: value})
}

// Del removes every field line named name.
func (h *Headers) Del(name string) {
	out := make([]http.Field, 0, len(h.fields))
	for _, f := range h.fields {
		if !strings.EqualFold(f.Name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// CanonicalName returns s in canonical form(e.g. "content-type" -> "Content-Type").
// Names which are not valid tokens are returned unchanged.
func CanonicalName(s string) string {
	if !rule.IsValidToken(s) {
		return s
	}

	const capitalDiff = 'a' - 'A'
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			c -= capitalDiff
		} else if !upper && 'A' <= c && c <= 'Z' {
			c += capitalDiff
		}
		b[i] = c
		upper = c == '-'
	}
	return string(b)
}

func tokenizeFieldValues(fieldValue []byte) []string {
	tokens := make([]string, 0)
	buf := bytes.NewBuffer(nil)

	// Commas inside a quoted string don't separate elements.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.4-1
	quoted := false
	for _, part := range bytes.Split(fieldValue, []byte{','}) {
		if quoted {
			buf.WriteByte(',')
		}

		for _, c := range part {
			if c == '"' {
				quoted = !quoted
			}
			buf.WriteByte(c)
		}

		if !quoted {
			tokens = addToken(tokens, buf.Bytes())
			buf.Reset()
		}
	}

	if buf.Len() > 0 {
		// Quote didn't end properly.
		tokens = addToken(tokens, buf.Bytes())
	}

	return tokens
}

func addToken(tokens []string, token []byte) []string {
	token = bytes.TrimFunc(token, rule.IsWhitespace)
	token = rule.Unquote(token)
	if len(token) == 0 {
		return tokens
	}
	return append(tokens, string(token))
}
