// Package netconn adapts operating system sockets to [transport.Conn].
package netconn

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"
	"time"

	"http-exchange/transport"

	"github.com/pkg/errors"
)

// Addr is a comparable snapshot of a [net.Addr].
type Addr struct {
	Net  string
	Host string
}

func (a Addr) Network() string { return a.Net }
func (a Addr) String() string  { return a.Host }

func addrOf(a net.Addr) transport.Addr {
	if a == nil {
		return Addr{}
	}
	return Addr{Net: a.Network(), Host: a.String()}
}

type conn struct {
	c net.Conn
}

var _ transport.Conn = (*conn)(nil)

// Wrap adapts c. Errors are translated to the transport sentinels.
func Wrap(c net.Conn) transport.Conn { return &conn{c: c} }

func (c *conn) Read(p []byte) (int, error) {
	n, err := c.c.Read(p)
	return n, translate(err)
}

func (c *conn) Write(p []byte) (int, error) {
	n, err := c.c.Write(p)
	return n, translate(err)
}

func (c *conn) Close() error {
	if err := c.c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (c *conn) LocalAddr() transport.Addr  { return addrOf(c.c.LocalAddr()) }
func (c *conn) RemoteAddr() transport.Addr { return addrOf(c.c.RemoteAddr()) }

// Deadline errors only occur on closed sockets, where the next
// Read or Write reports the closure anyway.
func (c *conn) SetReadDeadLine(t time.Time)  { _ = c.c.SetReadDeadline(t) }
func (c *conn) SetWriteDeadLine(t time.Time) { _ = c.c.SetWriteDeadline(t) }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed):
		return transport.ErrConnClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return transport.ErrDeadLineExceeded
	}
	return err
}

// Dialer opens TCP connections, wrapped in TLS for secure addresses.
type Dialer struct {
	Net *net.Dialer
	TLS *tls.Config
}

var _ transport.ConnDialer = (*Dialer)(nil)

func NewDialer(timeout time.Duration, tlsConfig *tls.Config) *Dialer {
	return &Dialer{
		Net: &net.Dialer{Timeout: timeout},
		TLS: tlsConfig,
	}
}

func (d *Dialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	if addr.Network() != "tls" {
		c, err := d.Net.DialContext(ctx, addr.Network(), addr.String())
		if err != nil {
			return nil, errors.Wrapf(err, "dialing %s", addr)
		}
		return Wrap(c), nil
	}

	config := &tls.Config{}
	if d.TLS != nil {
		config = d.TLS.Clone()
	}
	if hp, ok := addr.(transport.HostPort); ok && config.ServerName == "" {
		config.ServerName = hp.Host
	}

	td := &tls.Dialer{NetDialer: d.Net, Config: config}
	c, err := td.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s over tls", addr)
	}
	return Wrap(c), nil
}
