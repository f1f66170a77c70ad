package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"http-exchange/application/http"
	"http-exchange/application/http/body"
	"http-exchange/application/http/semantic"
	"http-exchange/application/http/semantic/status"
	"http-exchange/application/http/transfer"
	iolib "http-exchange/lib/io"
	"http-exchange/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var (
	ErrUnknownLengthOnHTTP10 = errors.New("body of unknown length can't be framed for HTTP/1.0")
	ErrUnexpectedSwitch      = errors.New("server switched protocols")
)

// conn is one physical connection. It carries a single exchange at a time.
type conn struct {
	con  transport.Conn
	addr transport.Addr

	br *bufio.Reader
	bw *bufio.Writer

	logger *slog.Logger
	clock  clock.Clock
	opts   Options

	idleAt time.Time
	reused bool

	closeOnce sync.Once
}

func newConn(con transport.Conn, addr transport.Addr, logger *slog.Logger, clock clock.Clock, opts Options) *conn {
	return &conn{
		con:    con,
		addr:   addr,
		br:     bufio.NewReader(con),
		bw:     bufio.NewWriter(con),
		logger: logger,
		clock:  clock,
		opts:   opts,
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		if err := c.con.Close(); err != nil {
			c.logger.Warn("closing connection", slog.String("addr", c.addr.String()), slog.Any("error", err))
		}
	})
}

func (c *conn) idleTimeoutExceeded(timeout time.Duration) bool {
	if timeout <= 0 || c.idleAt.IsZero() {
		return false
	}
	return c.clock.Since(c.idleAt) >= timeout
}

// requestHead builds the head as it is written on the wire.
func requestHead(req *semantic.Request, bt *body.ChunkedTransport) (http.RequestHead, error) {
	headers := semantic.NewHeaders(http.Field{Name: "Host", Value: req.URI.Host()})
	for _, f := range req.Headers.Fields() {
		switch semantic.CanonicalName(f.Name) {
		case "Host", "Content-Length", "Transfer-Encoding":
			// Framing fields are derived from the body.
			continue
		}
		headers.Add(f.Name, f.Value)
	}

	switch {
	case bt == nil:
		// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.6-5
		switch req.Method {
		case semantic.MethodPost, semantic.MethodPut, semantic.MethodPatch:
			headers.Add("Content-Length", "0")
		}
	case bt.Length() >= 0:
		headers.Add("Content-Length", strconv.FormatInt(bt.Length(), 10))
	case req.Version.Less(http.Version1_1):
		return http.RequestHead{}, ErrUnknownLengthOnHTTP10
	default:
		headers.Add("Transfer-Encoding", string(transfer.CodingChunked))
	}

	return http.RequestHead{
		Method:  string(req.Method),
		Target:  req.URI.RequestTarget(),
		Version: req.Version,
		Fields:  headers.Fields(),
	}, nil
}

func (c *conn) writeRequest(ctx context.Context, head http.RequestHead, bt *body.ChunkedTransport) error {
	enc := http.NewEncoder(c.bw, c.opts.Send.Encode)
	if err := enc.EncodeRequestHead(head); err != nil {
		return errors.Wrap(err, "writing request head")
	}

	if bt == nil {
		return nil
	}

	return c.writeBody(ctx, bt)
}

// writeBody pumps bt into the connection until the end of input.
func (c *conn) writeBody(ctx context.Context, bt *body.ChunkedTransport) error {
	var (
		w  io.Writer = c.bw
		cw *transfer.ChunkedWriter
	)
	if bt.Length() < 0 {
		cw = transfer.NewChunkedWriter(c.bw)
		w = cw
	}

	for !bt.IsEndOfInput() {
		chunk, ok, err := bt.ReadChunk()
		if err != nil {
			return errors.Wrap(err, "reading body chunk")
		}

		if ok {
			if len(chunk) == 0 {
				continue
			}
			if _, err := iolib.WriteFull(w, chunk); err != nil {
				return errors.Wrap(err, "writing body chunk")
			}
			continue
		}

		if bt.IsEndOfInput() {
			break
		}

		// Suspended. Push out what's buffered before waiting.
		if err := c.bw.Flush(); err != nil {
			return errors.Wrap(err, "flushing body")
		}
		if err := c.waitReady(ctx, bt.Ready()); err != nil {
			return err
		}
	}

	if cw != nil {
		if err := cw.Close(); err != nil {
			return errors.Wrap(err, "writing last chunk")
		}
	} else if bt.Progress() != uint64(bt.Length()) {
		return &body.ConsistencyError{
			Reason: fmt.Sprintf("body ended after %d of %d bytes", bt.Progress(), bt.Length()),
		}
	}

	return errors.Wrap(c.bw.Flush(), "flushing body")
}

func (c *conn) waitReady(ctx context.Context, ready <-chan struct{}) error {
	retry := c.opts.Send.SuspendRetry
	if retry <= 0 {
		retry = DefaultSuspendRetry
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ready:
	case <-c.clock.After(retry):
	}
	return nil
}

// readResponse reads the next final response. framed reports whether
// the end of its body can be found without closing the connection.
func (c *conn) readResponse(method semantic.Method) (_ *semantic.Response, framed bool, _ error) {
	if timeout := c.opts.Timeout.ResponseHeader; timeout > 0 {
		c.con.SetReadDeadLine(c.clock.Now().Add(timeout))
		defer c.con.SetReadDeadLine(time.Time{})
	}

	dec := http.NewDecoder(c.br, c.opts.Receive.Decode)

	var head http.ResponseHead
	for {
		var err error
		head, err = dec.DecodeResponseHead()
		if err != nil {
			return nil, false, errors.Wrap(err, "reading response head")
		}

		// Interim responses precede the final one.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-15.2
		if head.StatusCode >= 100 && head.StatusCode < 200 && head.StatusCode != status.SwitchingProtocols.Code {
			c.logger.Debug("skipping interim response", slog.Uint64("status", uint64(head.StatusCode)))
			continue
		}
		break
	}

	if head.StatusCode == status.SwitchingProtocols.Code {
		return nil, false, ErrUnexpectedSwitch
	}

	res := semantic.ResponseFrom(head, nil)
	if !c.opts.Receive.UseReceivedReasonPhrase {
		// Overwrite the reason phrase with default one.
		if st, ok := status.FromCode(res.Status.Code); ok {
			res.Status = st
		}
	}

	rd, framed, err := c.bodyReader(method, res)
	if err != nil {
		return nil, false, err
	}
	res.Body = rd

	return res, framed, nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3
func (c *conn) bodyReader(method semantic.Method, res *semantic.Response) (io.Reader, bool, error) {
	if method == semantic.MethodHead || !res.Status.HasBody() {
		return eofReader{}, true, nil
	}

	if res.Headers.Has("Transfer-Encoding") {
		codings, err := semantic.TransferCodings(res.Headers)
		if err != nil {
			return nil, false, errors.Wrap(err, "parsing transfer-encoding")
		}

		if transfer.IsChunked(codings) {
			// Body is delimited by last chunk.
			// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.4.1
			return transfer.NewChunkedReader(c.br), true, nil
		}

		// The message is finished when server closes connection.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.4.2
		return &connClosedReader{r: c.br}, false, nil
	}

	length, ok, err := semantic.ContentLength(res.Headers)
	if err != nil {
		return nil, false, err
	}
	if ok {
		// Body is delimited by Content-Length.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.6
		return iolib.LimitReader(c.br, length), true, nil
	}

	// Neither transfer-encoding nor content-length exists.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.8
	return &connClosedReader{r: c.br}, false, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// connClosedReader overwrites [transport.ErrConnClosed] as [io.EOF].
type connClosedReader struct{ r io.Reader }

func (r *connClosedReader) Read(p []byte) (n int, err error) {
	n, err = r.r.Read(p)
	if errors.Is(err, transport.ErrConnClosed) {
		return n, io.EOF
	}
	return n, err
}
