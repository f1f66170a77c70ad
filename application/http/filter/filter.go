// Package filter implements request filters run before every attempt of
// an exchange, including the first one.
package filter

import (
	"context"
	"fmt"

	"http-exchange/application/http/semantic"

	"github.com/pkg/errors"
)

// Context is the value passed through filters.
type Context struct {
	// Request is the request about to be sent.
	Request *semantic.Request
	// Response is the most recent response of the exchange, nil before
	// the first attempt. Its body is already consumed.
	Response *semantic.Response
	// Attempt is the 1-based number of the attempt about to be made.
	Attempt uint
}

// Filter returns the context to pass on. It must not modify fc.Request
// in place; replace it with a derived request instead.
type Filter interface {
	Filter(ctx context.Context, fc Context) (Context, error)
}

type Func func(ctx context.Context, fc Context) (Context, error)

func (f Func) Filter(ctx context.Context, fc Context) (Context, error) { return f(ctx, fc) }

var ErrNilRequest = errors.New("filter returned no request")

// Error aborts an exchange. Errors of this type returned by a filter are
// passed through as is; other errors are wrapped into one.
type Error struct {
	// Index is the position of the failing filter in the chain.
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("filter %d: %s", e.Index, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Chain is an ordered list of filters.
//
// Order:
//   - Chain(a, b, c).Apply(ctx, fc) returns c(b(a(fc))).
type Chain []Filter

// NewChain creates a chain from the provided filters.
//
// Nil filters are ignored.
func NewChain(filters ...Filter) Chain {
	return appendNonNil(nil, filters)
}

// With returns a new chain by appending more filters to the current chain.
// It never mutates the receiver.
func (c Chain) With(more ...Filter) Chain {
	out := make(Chain, 0, len(c)+len(more))
	out = appendNonNil(out, c)
	return appendNonNil(out, more)
}

// Apply folds fc through every filter in order. The first failing filter
// aborts the fold and the remaining ones are not applied.
func (c Chain) Apply(ctx context.Context, fc Context) (Context, error) {
	for i, f := range c {
		if f == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fc, &Error{Index: i, Err: err}
		}

		next, err := f.Filter(ctx, fc)
		if err != nil {
			var ferr *Error
			if errors.As(err, &ferr) {
				return fc, err
			}
			return fc, &Error{Index: i, Err: err}
		}
		if next.Request == nil {
			return fc, &Error{Index: i, Err: ErrNilRequest}
		}

		fc = next
	}
	return fc, nil
}

func appendNonNil(dst Chain, src []Filter) Chain {
	for _, f := range src {
		if f == nil {
			continue
		}
		dst = append(dst, f)
	}
	return dst
}

// RemoveHeader returns a filter which drops name from requests sent after
// a response was received, i.e. from every redirected attempt.
func RemoveHeader(name string) Filter {
	return Func(func(_ context.Context, fc Context) (Context, error) {
		if fc.Response == nil || !fc.Request.Headers.Has(name) {
			return fc, nil
		}
		req := fc.Request.Clone()
		req.Headers.Del(name)
		fc.Request = req
		return fc, nil
	})
}

// SetHeader returns a filter which sets name on every attempt.
func SetHeader(name, value string) Filter {
	return Func(func(_ context.Context, fc Context) (Context, error) {
		req := fc.Request.Clone()
		req.Headers.Set(name, value)
		fc.Request = req
		return fc, nil
	})
}
