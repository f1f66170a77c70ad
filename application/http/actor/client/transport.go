package client

import (
	"context"
	"log/slog"
	"sync"

	"http-exchange/application/http"
	"http-exchange/application/http/body"
	"http-exchange/application/http/semantic"
	iolib "http-exchange/lib/io"
	"http-exchange/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Transport carries one physical exchange.
type Transport interface {
	// Send writes req and its body, then waits for the final response head.
	// bt is nil for requests without content. Send closes bt exactly once,
	// whatever the outcome.
	Send(ctx context.Context, req *semantic.Request, bt *body.ChunkedTransport) (*Roundtrip, error)
}

// Roundtrip is a response together with the connection it arrived on.
type Roundtrip struct {
	Response *semantic.Response

	// SentVersion and SentHeaders are the request head as written.
	SentVersion http.Version
	SentHeaders semantic.Headers

	release func(keepAlive bool) error
	once    sync.Once
	err     error
}

// NewRoundtrip is meant for [Transport] implementations.
// release is called at most once.
func NewRoundtrip(res *semantic.Response, version http.Version, headers semantic.Headers, release func(keepAlive bool) error) *Roundtrip {
	return &Roundtrip{
		Response:    res,
		SentVersion: version,
		SentHeaders: headers,
		release:     release,
	}
}

// Release hands the connection back. It is pooled only when keepAlive
// is true and the response body can be read to its end; otherwise it's
// closed. Only the first call has an effect.
func (rt *Roundtrip) Release(keepAlive bool) error {
	rt.once.Do(func() {
		if rt.release != nil {
			rt.err = rt.release(keepAlive)
		}
	})
	return rt.err
}

// ConnTransport sends requests over connections from a dialer and keeps
// idle ones for reuse.
type ConnTransport struct {
	dialer transport.ConnDialer
	pool   *connPool

	logger *slog.Logger
	clock  clock.Clock
	opts   Options
}

var _ Transport = (*ConnTransport)(nil)

func NewConnTransport(d transport.ConnDialer, logger *slog.Logger, clock clock.Clock, opts Options) *ConnTransport {
	return &ConnTransport{
		dialer: d,
		pool:   newConnPool(opts.Timeout.IdleTimeout, opts.Conn.MaxIdleConnsPerHost, clock),
		logger: logger,
		clock:  clock,
		opts:   opts,
	}
}

func (t *ConnTransport) Send(ctx context.Context, req *semantic.Request, bt *body.ChunkedTransport) (*Roundtrip, error) {
	if bt != nil {
		// Close is idempotent, this only matters on early returns.
		defer bt.Close()
	}

	head, err := requestHead(req, bt)
	if err != nil {
		return nil, err
	}

	resolve := t.opts.Conn.Resolve
	if resolve == nil {
		resolve = HostPortOf
	}
	addr, err := resolve(req.URI)
	if err != nil {
		return nil, errors.Wrap(err, "resolving address")
	}

	c, err := t.getConn(ctx, addr)
	if err != nil {
		return nil, err
	}

	// Reads and writes on a connection don't watch ctx.
	// Closing it unblocks them.
	stop := context.AfterFunc(ctx, c.close)

	res, framed, err := t.roundtrip(ctx, c, req, head, bt)
	if !stop() || err != nil {
		c.close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	rd := res.Body
	release := func(keepAlive bool) error {
		if !keepAlive || !framed {
			c.close()
			return nil
		}

		if _, err := iolib.Drain(rd); err != nil {
			c.close()
			return errors.Wrap(err, "draining response body")
		}

		if !t.pool.put(c) {
			c.close()
		}
		return nil
	}

	return NewRoundtrip(res, head.Version, semantic.NewHeaders(head.Fields...), release), nil
}

func (t *ConnTransport) roundtrip(
	ctx context.Context, c *conn,
	req *semantic.Request, head http.RequestHead, bt *body.ChunkedTransport,
) (*semantic.Response, bool, error) {
	if err := c.writeRequest(ctx, head, bt); err != nil {
		return nil, false, errors.Wrap(err, "writing request")
	}

	if bt != nil {
		if err := bt.Close(); err != nil {
			return nil, false, errors.Wrap(err, "closing request body")
		}
	}

	res, framed, err := c.readResponse(req.Method)
	if err != nil {
		return nil, false, errors.Wrap(err, "reading response")
	}

	return res, framed, nil
}

func (t *ConnTransport) getConn(ctx context.Context, addr transport.Addr) (*conn, error) {
	if c, ok := t.pool.get(addr); ok {
		t.logger.Debug("reusing connection", slog.String("addr", addr.String()))
		return c, nil
	}

	con, err := t.dialer.Dial(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", addr)
	}
	t.logger.Debug("dialed connection", slog.String("addr", addr.String()))

	return newConn(con, addr, t.logger, t.clock, t.opts), nil
}

// CloseIdleConns closes every pooled connection.
func (t *ConnTransport) CloseIdleConns() {
	t.pool.closeIdle()
}
