package client

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"http-exchange/application/http/body"
	"http-exchange/application/http/filter"
	"http-exchange/application/http/keepalive"
	"http-exchange/application/http/semantic"
	"http-exchange/application/util/uri"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNilRequest = errors.New("request is nil")

// TransportError is a failure of the physical exchange. It is never retried.
type TransportError struct {
	Attempt uint
	URI     uri.URI
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("attempt %d to %s: %s", e.Attempt, e.URI.String(), e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type state uint8

const (
	stateInit state = iota
	stateSending
	stateDeciding
	stateDone
	stateFailed
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateSending:
		return "sending"
	case stateDeciding:
		return "deciding"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Hop is one physical exchange of a logical exchange.
type Hop struct {
	URI       uri.URI
	Status    uint
	KeepAlive bool
}

// Result is a completed exchange. The caller must Close it after
// reading the response body.
type Result struct {
	Response *semantic.Response

	// KeepAlive is the verdict for the connection of the final attempt.
	KeepAlive bool
	Redirects uint
	Attempts  uint
	// URI is the target of the final attempt.
	URI uri.URI
	// Hops holds every attempt in order, the final one included.
	Hops []Hop

	roundtrip *Roundtrip
}

// Close releases the final connection with the recorded verdict.
func (r *Result) Close() error {
	return r.roundtrip.Release(r.KeepAlive)
}

// Client follows one request through its redirects.
type Client struct {
	transport Transport
	logger    *slog.Logger
	opts      Options
}

func New(t Transport, logger *slog.Logger, opts Options) *Client {
	if opts.KeepAlive == nil {
		opts.KeepAlive = keepalive.Default
	}
	return &Client{transport: t, logger: logger, opts: opts}
}

// exchange is the state of one Do call.
type exchange struct {
	id     uuid.UUID
	logger *slog.Logger
	state  state

	original  *semantic.Request
	redirects uint
	hops      []Hop
}

func (ex *exchange) transition(to state) {
	ex.logger.Debug("exchange state", slog.String("from", ex.state.String()), slog.String("to", to.String()))
	ex.state = to
}

func (ex *exchange) fail(err error) error {
	ex.transition(stateFailed)
	ex.logger.Warn("exchange failed", slog.Any("error", err))
	return err
}

// discardBody closes a request body which is never handed to the transport.
func (ex *exchange) discardBody(src body.Source) {
	if src == nil {
		return
	}
	if err := src.Close(); err != nil {
		ex.logger.Warn("closing request body", slog.Any("error", err))
	}
}

// sameSource reports whether a and b are the same source. Sources of a
// type that can't be compared are assumed to be the same.
func sameSource(a, b body.Source) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	return !ta.Comparable() || a == b
}

// Do sends req and follows redirects as configured.
// req is never modified; redirects derive new requests from it.
func (c *Client) Do(ctx context.Context, req *semantic.Request) (*Result, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	id := uuid.New()
	ex := &exchange{
		id:       id,
		logger:   c.logger.With(slog.String("exchange", id.String())),
		state:    stateInit,
		original: req,
	}

	ex.logger.Debug("exchange started",
		slog.String("method", string(ex.original.Method)),
		slog.String("uri", ex.original.URI.String()),
	)

	var (
		current = ex.original
		last    *semantic.Response
	)

	for attempt := uint(1); ; attempt++ {
		fc, err := c.opts.Filters.Apply(ctx, filter.Context{
			Request:  current,
			Response: last,
			Attempt:  attempt,
		})
		if err != nil {
			ex.discardBody(current.Body)
			return nil, ex.fail(err)
		}
		if !sameSource(fc.Request.Body, current.Body) {
			ex.discardBody(current.Body)
		}
		current = fc.Request

		ex.transition(stateSending)
		ex.logger.Debug("sending request",
			slog.Uint64("attempt", uint64(attempt)),
			slog.String("method", string(current.Method)),
			slog.String("uri", current.URI.String()),
		)

		var bt *body.ChunkedTransport
		if current.Body != nil {
			bt = body.NewChunkedTransport(current.Body)
		}

		rt, err := c.transport.Send(ctx, current, bt)
		if err != nil {
			return nil, ex.fail(&TransportError{Attempt: attempt, URI: current.URI, Err: err})
		}

		ex.transition(stateDeciding)
		res := rt.Response

		keepAlive := c.opts.KeepAlive.KeepAlive(keepalive.Exchange{
			Request:     current,
			SentVersion: rt.SentVersion,
			SentHeaders: rt.SentHeaders,
			Response:    res,
		})
		ex.hops = append(ex.hops, Hop{URI: current.URI, Status: res.Status.Code, KeepAlive: keepAlive})

		ex.logger.Debug("response received",
			slog.Uint64("attempt", uint64(attempt)),
			slog.Uint64("status", uint64(res.Status.Code)),
			slog.Bool("keep_alive", keepAlive),
		)

		next, decision, err := c.opts.Redirect.Next(current, res, ex.redirects)
		if err != nil {
			if relErr := rt.Release(keepAlive); relErr != nil {
				ex.logger.Warn("releasing connection", slog.Any("error", relErr))
			}
			return nil, ex.fail(err)
		}

		if next == nil {
			ex.transition(stateDone)
			return &Result{
				Response:  res,
				KeepAlive: keepAlive,
				Redirects: ex.redirects,
				Attempts:  attempt,
				URI:       current.URI,
				Hops:      ex.hops,
				roundtrip: rt,
			}, nil
		}

		// The redirect response body is not exposed, so read it off the
		// connection before leaving it.
		if err := rt.Release(keepAlive); err != nil {
			return nil, ex.fail(&TransportError{Attempt: attempt, URI: current.URI, Err: err})
		}

		location, _ := res.Location()
		ex.logger.Info("following redirect",
			slog.Uint64("status", uint64(res.Status.Code)),
			slog.String("location", location),
			slog.Bool("preserve_body", decision.PreserveBody),
		)

		ex.redirects++
		last = res
		current = next
	}
}
