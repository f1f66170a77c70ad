package semantic

import (
	"http-exchange/application/http"
	"http-exchange/application/http/body"
	"http-exchange/application/util/rule"
	"http-exchange/application/util/uri"

	"github.com/pkg/errors"
)

// Request describes one request to send. It is treated as immutable once
// handed to a client; derive new requests with [Request.Clone].
type Request struct {
	Method  Method
	URI     uri.URI
	Version http.Version
	Headers Headers

	// Body is nil for requests without content.
	Body body.Source
}

// NewRequest creates a HTTP/1.1 request for an absolute http(s) URI.
func NewRequest(method Method, rawURI string, src body.Source, headers ...http.Field) (*Request, error) {
	if !rule.IsValidToken(string(method)) {
		return nil, errors.Errorf("method is not a valid token: %q", method)
	}

	u, err := uri.ParseHTTP(rawURI)
	if err != nil {
		return nil, errors.Wrap(err, "parsing request uri")
	}

	return &Request{
		Method:  method,
		URI:     u,
		Version: http.Version1_1,
		Headers: NewHeaders(headers...),
		Body:    src,
	}, nil
}

// Clone returns a copy which shares nothing mutable with r except Body.
func (r *Request) Clone() *Request {
	out := *r
	out.Headers = r.Headers.Clone()
	out.URI = cloneURI(r.URI)
	return &out
}

// ContentLength returns the body length, 0 without body and
// [body.UnknownLength] if unknown.
func (r *Request) ContentLength() int64 {
	if r.Body == nil {
		return 0
	}
	return r.Body.ContentLength()
}

func cloneURI(u uri.URI) uri.URI {
	if u.Authority != nil {
		a := *u.Authority
		if a.Port != nil {
			port := *a.Port
			a.Port = &port
		}
		u.Authority = &a
	}
	if u.Query != nil {
		q := *u.Query
		u.Query = &q
	}
	if u.Fragment != nil {
		f := *u.Fragment
		u.Fragment = &f
	}
	return u
}
