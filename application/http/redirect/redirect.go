// Package redirect decides whether a response is followed and derives the
// request for the next attempt.
package redirect

import (
	"fmt"

	"http-exchange/application/http/body"
	"http-exchange/application/http/semantic"
	"http-exchange/application/http/semantic/status"
	"http-exchange/application/util/uri"

	"github.com/pkg/errors"
)

var (
	ErrMissingLocation   = errors.New("redirect response has no Location")
	ErrMalformedLocation = errors.New("redirect Location is malformed")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrBodyNotReplayable = errors.New("redirect requires resending a body which can't be replayed")
)

// Error is a terminal redirect failure. Response is the redirect
// response which couldn't be followed.
type Error struct {
	Err      error
	Response *semantic.Response
}

func (e *Error) Error() string {
	if e.Response == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (status %s)", e.Err, e.Response.Status)
}

func (e *Error) Unwrap() error { return e.Err }

type Decision struct {
	Follow       bool
	PreserveBody bool
}

// Decide classifies a status code.
// Only 301, 302, 303, 307 and 308 are ever followed.
// strict302 makes 302 keep the method and body like 307.
func Decide(code uint, strict302 bool) Decision {
	switch code {
	case status.MovedPermanently.Code, status.SeeOther.Code:
		return Decision{Follow: true}
	case status.Found.Code:
		return Decision{Follow: true, PreserveBody: strict302}
	case status.TemporaryRedirect.Code, status.PermanentRedirect.Code:
		return Decision{Follow: true, PreserveBody: true}
	}
	return Decision{}
}

// Fields describing the content, dropped together with the body.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-15.4-6.2.1
var contentFields = []string{
	"Content-Type",
	"Content-Length",
	"Content-Encoding",
	"Content-Language",
	"Content-Location",
	"Transfer-Encoding",
}

var credentialFields = []string{
	"Authorization",
	"Proxy-Authorization",
	"Cookie",
}

type Policy struct {
	// Enabled turns redirect following on.
	Enabled bool
	// Strict302 resends the original method and body on 302.
	Strict302 bool
	// MaxRedirects bounds the number of redirects followed in one exchange.
	MaxRedirects uint
	// KeepCredentialsAcrossOrigins keeps credential fields when the
	// redirect target has another origin.
	KeepCredentialsAcrossOrigins bool
}

var DefaultPolicy = Policy{
	Enabled:      true,
	Strict302:    false,
	MaxRedirects: 5,
}

// Next returns the request for the attempt following res, or nil when res
// is final. redirects is the number of redirects already followed.
// req is never modified.
func (p Policy) Next(req *semantic.Request, res *semantic.Response, redirects uint) (*semantic.Request, Decision, error) {
	if !p.Enabled {
		return nil, Decision{}, nil
	}

	d := Decide(res.Status.Code, p.Strict302)
	if !d.Follow {
		return nil, d, nil
	}

	location, ok := res.Location()
	if !ok || location == "" {
		return nil, d, &Error{Err: ErrMissingLocation, Response: res}
	}

	if redirects >= p.MaxRedirects {
		return nil, d, &Error{
			Err:      errors.Wrapf(ErrTooManyRedirects, "limit %d", p.MaxRedirects),
			Response: res,
		}
	}

	target, err := Resolve(req.URI, location)
	if err != nil {
		return nil, d, &Error{Err: errors.Wrap(ErrMalformedLocation, err.Error()), Response: res}
	}

	next := req.Clone()
	next.URI = target
	next.Headers.Del("Host")

	if target.Origin() != req.URI.Origin() && !p.KeepCredentialsAcrossOrigins {
		for _, name := range credentialFields {
			next.Headers.Del(name)
		}
	}

	if !d.PreserveBody {
		next.Body = nil
		for _, name := range contentFields {
			next.Headers.Del(name)
		}

		switch next.Method {
		case semantic.MethodGet, semantic.MethodHead, semantic.MethodOptions:
		default:
			next.Method = semantic.MethodGet
		}
		return next, d, nil
	}

	if req.Body != nil {
		fresh, ok, err := body.Replay(req.Body)
		if !ok || errors.Is(err, body.ErrNotReplayable) {
			return nil, d, &Error{Err: ErrBodyNotReplayable, Response: res}
		}
		if err != nil {
			return nil, d, &Error{Err: errors.Wrap(err, "replaying body"), Response: res}
		}
		next.Body = fresh
	}

	return next, d, nil
}

// Resolve resolves a Location value against the URI of the request which
// received it. A target without fragment inherits the base fragment.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-10.2.2
func Resolve(base uri.URI, location string) (uri.URI, error) {
	ref, err := uri.Parse(location)
	if err != nil {
		return uri.URI{}, err
	}

	rr, err := uri.NewRefResolver(base)
	if err != nil {
		return uri.URI{}, err
	}

	target := rr.Resolve(ref)
	if _, _, err := target.HostPort(); err != nil {
		return uri.URI{}, err
	}
	if target.Fragment == nil && base.Fragment != nil {
		frag := *base.Fragment
		target.Fragment = &frag
	}
	return target, nil
}
