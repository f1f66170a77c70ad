package client

import (
	"time"

	"http-exchange/application/http"
	"http-exchange/application/http/filter"
	"http-exchange/application/http/keepalive"
	"http-exchange/application/http/redirect"
	"http-exchange/application/util/uri"
	"http-exchange/transport"
)

type Options struct {
	Send    SendOptions
	Receive ReceiveOptions
	Conn    ConnOptions
	Timeout TimeoutOptions

	Redirect redirect.Policy

	// KeepAlive decides connection reuse. Nil means [keepalive.Default].
	KeepAlive keepalive.Strategy

	// Filters run before every attempt, including the first one.
	Filters filter.Chain
}

type SendOptions struct {
	Encode http.EncodeOptions

	// SuspendRetry is how long the body pump waits after a suspended
	// source that has no readiness channel.
	SuspendRetry time.Duration
}

type ReceiveOptions struct {
	Decode http.DecodeOptions

	// UseReceivedReasonPhrase uses reason phrase from response.
	// If false, the reason phrase will instead be filled with default value for the status code.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-4-9
	UseReceivedReasonPhrase bool
}

type ConnOptions struct {
	// MaxIdleConnsPerHost bounds the pooled connections per address.
	// Zero disables pooling.
	MaxIdleConnsPerHost uint

	// Resolve maps a request URI to the address to dial.
	// Nil means [HostPortOf].
	Resolve func(u uri.URI) (transport.Addr, error)
}

type TimeoutOptions struct {
	// IdleTimeout is how long a pooled connection may stay unused.
	// Zero means no limit.
	IdleTimeout time.Duration

	// ResponseHeader bounds the wait for a response head after the
	// request was written. Zero means no limit.
	ResponseHeader time.Duration
}

const (
	DefaultSuspendRetry        = 10 * time.Millisecond
	DefaultIdleTimeout         = 90 * time.Second
	DefaultMaxIdleConnsPerHost = 2
)

func DefaultOptions() Options {
	return Options{
		Send: SendOptions{
			Encode:       http.DefaultEncodeOptions,
			SuspendRetry: DefaultSuspendRetry,
		},
		Receive: ReceiveOptions{
			Decode: http.DefaultDecodeOptions,
		},
		Conn: ConnOptions{
			MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		},
		Timeout: TimeoutOptions{
			IdleTimeout: DefaultIdleTimeout,
		},
		Redirect:  redirect.DefaultPolicy,
		KeepAlive: keepalive.Default,
	}
}

// HostPortOf returns the origin server address of an http(s) URI.
func HostPortOf(u uri.URI) (transport.Addr, error) {
	host, port, err := u.HostPort()
	if err != nil {
		return nil, err
	}
	return transport.HostPort{Host: host, Port: port, Secure: u.Secure()}, nil
}
