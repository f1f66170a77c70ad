// Package pipe implements an in-memory, synchronous [transport.Conn] pair
// and a dialer/listener registry on top of it.
package pipe

import (
	"sync"
	"time"

	"http-exchange/transport"

	"github.com/benbjohnson/clock"
)

// Conn is one end of a synchronous in-memory connection.
// A Write blocks until the counterpart has read all of its bytes.
type Conn struct {
	stream chan []byte // bytes written by the counterpart.
	nc     chan int    // how many bytes the counterpart consumed.

	writeMu sync.Mutex

	closed chan struct{}
	once   sync.Once

	rdeadLine *deadLine
	wdeadLine *deadLine

	counterpart *Conn

	addr transport.Addr
}

// Addr names a pipe endpoint.
type Addr struct {
	Name string
}

func (a Addr) Network() string { return "pipe" }
func (a Addr) String() string  { return a.Name }

var (
	_ transport.Addr = Addr{}
	_ transport.Conn = (*Conn)(nil)
)

// New creates a connected pair.
func New(local, remote transport.Addr, clock clock.Clock) (c1, c2 *Conn) {
	c1 = newConn(local, clock)
	c2 = newConn(remote, clock)
	c1.counterpart, c2.counterpart = c2, c1
	return c1, c2
}

// Pipe creates a connected pair with named endpoints.
func Pipe(name1, name2 string, clock clock.Clock) (c1, c2 *Conn) {
	return New(Addr{Name: name1}, Addr{Name: name2}, clock)
}

func newConn(addr transport.Addr, clock clock.Clock) *Conn {
	return &Conn{
		stream:    make(chan []byte),
		nc:        make(chan int),
		closed:    make(chan struct{}),
		rdeadLine: newDeadLine(clock),
		wdeadLine: newDeadLine(clock),
		addr:      addr,
	}
}

func (c *Conn) LocalAddr() transport.Addr  { return c.addr }
func (c *Conn) RemoteAddr() transport.Addr { return c.counterpart.addr }

// Close never fails, even when called more than once.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *Conn) Read(b []byte) (n int, err error) {
	if err := c.check(c.rdeadLine); err != nil {
		return 0, err
	}

	select {
	case received := <-c.stream:
		n := copy(b, received)
		c.counterpart.nc <- n
		return n, nil
	case <-c.closed:
		return 0, transport.ErrConnClosed
	case <-c.counterpart.closed:
		return 0, transport.ErrConnClosed
	case <-c.rdeadLine.wait():
		return 0, transport.ErrDeadLineExceeded
	}
}

func (c *Conn) Write(b []byte) (n int, err error) {
	if err := c.check(c.wdeadLine); err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for len(b) > 0 {
		select {
		case c.counterpart.stream <- b:
			nn := <-c.nc
			b = b[nn:]
			n += nn
		case <-c.closed:
			return n, transport.ErrConnClosed
		case <-c.counterpart.closed:
			return n, transport.ErrConnClosed
		case <-c.wdeadLine.wait():
			return n, transport.ErrDeadLineExceeded
		}
	}

	return n, nil
}

func (c *Conn) check(d *deadLine) error {
	switch {
	case isClosed(c.closed), isClosed(c.counterpart.closed):
		return transport.ErrConnClosed
	case isClosed(d.wait()):
		return transport.ErrDeadLineExceeded
	}
	return nil
}

func (c *Conn) SetReadDeadLine(t time.Time)  { c.rdeadLine.set(t) }
func (c *Conn) SetWriteDeadLine(t time.Time) { c.wdeadLine.set(t) }

// deadLine is a channel closed once the configured time passes.
type deadLine struct {
	clock clock.Clock

	t *clock.Timer
	m sync.Mutex

	expired chan struct{}
}

func newDeadLine(clock clock.Clock) *deadLine {
	return &deadLine{
		clock:   clock,
		expired: make(chan struct{}),
	}
}

func (d *deadLine) set(t time.Time) {
	d.m.Lock()
	defer d.m.Unlock()

	stale := false
	if d.t != nil {
		// A timer that already fired may still be closing the old channel.
		stale = !d.t.Stop()
		d.t = nil
	}

	if stale || isClosed(d.expired) {
		d.expired = make(chan struct{})
	}

	if t.IsZero() {
		return
	}

	wait := d.clock.Until(t)
	if wait <= 0 {
		close(d.expired)
		return
	}

	expired := d.expired
	d.t = d.clock.AfterFunc(wait, func() { close(expired) })
}

func (d *deadLine) wait() <-chan struct{} {
	d.m.Lock()
	defer d.m.Unlock()
	return d.expired
}

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}
