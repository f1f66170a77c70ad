package pipe

import (
	"context"
	"sync"

	"http-exchange/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

type dialRequest struct {
	conn     *Conn
	accepted chan struct{}
}

// Transport is an in-memory network: listeners register an address
// and dialers reach them by the same address.
type Transport struct {
	listeners map[transport.Addr]*Listener
	clock     clock.Clock

	mu sync.Mutex
}

var _ transport.ConnDialer = (*Transport)(nil)

func NewTransport(clock clock.Clock) *Transport {
	return &Transport{
		listeners: make(map[transport.Addr]*Listener),
		clock:     clock,
	}
}

func (t *Transport) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	t.mu.Lock()
	listener, ok := t.listeners[addr]
	t.mu.Unlock()

	if !ok {
		return nil, errors.Wrapf(transport.ErrNetUnreachable, "dialing %s", addr)
	}

	local, remote := New(Addr{Name: "dialer"}, addr, t.clock)

	req := dialRequest{
		conn:     remote,
		accepted: make(chan struct{}, 1),
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-listener.closed:
		return nil, errors.Wrapf(transport.ErrConnRefused, "dialing %s", addr)
	case listener.requests <- req:
	}

	select {
	case <-ctx.Done():
		local.Close()
		return nil, ctx.Err()
	case _, accepted := <-req.accepted:
		if !accepted {
			return nil, errors.Wrapf(transport.ErrConnRefused, "dialing %s", addr)
		}
	}

	return local, nil
}

// Listen registers addr. Any comparable [transport.Addr] works,
// so tests can listen on the [transport.HostPort] a URI resolves to.
func (t *Transport) Listen(addr transport.Addr) (*Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.listeners[addr]; ok {
		return nil, errors.Wrapf(transport.ErrAddrAlreadyInUse, "listening on %s", addr)
	}

	l := &Listener{
		addr:      addr,
		transport: t,
		requests:  make(chan dialRequest),
		closed:    make(chan struct{}),
	}
	t.listeners[addr] = l

	return l, nil
}

type Listener struct {
	addr transport.Addr

	transport *Transport

	requests chan dialRequest
	closed   chan struct{}

	mu sync.Mutex
}

var _ transport.ConnListener = (*Listener)(nil)

func (l *Listener) Addr() transport.Addr { return l.addr }

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnListenerClosed
	case req := <-l.requests:
		// accepted is buffered, so this never blocks.
		req.accepted <- struct{}{}
		return req.conn, nil
	}
}

// Close refuses pending dials and unregisters the address.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if isClosed(l.closed) {
		return transport.ErrConnListenerClosed
	}
	close(l.closed)

	for drained := false; !drained; {
		select {
		case req := <-l.requests:
			close(req.accepted)
		default:
			drained = true
		}
	}

	l.transport.mu.Lock()
	delete(l.transport.listeners, l.addr)
	l.transport.mu.Unlock()

	return nil
}
