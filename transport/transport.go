package transport

import (
	"net"
	"strconv"
)

// Addr identifies an endpoint. Implementations must be comparable,
// since addresses are used as map keys by listeners and pools.
type Addr interface {
	Network() string
	String() string
}

// HostPort is the address of an HTTP origin server.
// Host is either a registered name or an IP literal without brackets.
type HostPort struct {
	Host   string
	Port   uint16
	Secure bool
}

var _ Addr = HostPort{}

func (a HostPort) Network() string {
	if a.Secure {
		return "tls"
	}
	return "tcp"
}

func (a HostPort) String() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}
