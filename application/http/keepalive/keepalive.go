// Package keepalive decides whether a connection may be reused after an
// exchange completed.
package keepalive

import (
	"http-exchange/application/http"
	"http-exchange/application/http/semantic"
	"http-exchange/application/util/rule"
)

const (
	tokenClose     = "close"
	tokenKeepAlive = "keep-alive"
)

// Exchange is one physical request/response pair on a connection.
type Exchange struct {
	// Request is the request as built by the caller, after filters.
	Request *semantic.Request

	// SentVersion and SentHeaders are what was actually written on the wire.
	SentVersion http.Version
	SentHeaders semantic.Headers

	Response *semantic.Response
}

// Strategy reports whether the connection used by an exchange can be
// returned to the pool. Implementations must be pure.
type Strategy interface {
	KeepAlive(ex Exchange) bool
}

type StrategyFunc func(ex Exchange) bool

func (f StrategyFunc) KeepAlive(ex Exchange) bool { return f(ex) }

var (
	// Default follows the persistence rules of HTTP/1.0 and HTTP/1.1.
	Default Strategy = rfc7230{}

	// Never disables connection reuse.
	Never Strategy = StrategyFunc(func(Exchange) bool { return false })
)

// Reference: https://datatracker.ietf.org/doc/html/rfc7230#section-6.1
type rfc7230 struct{}

func (rfc7230) KeepAlive(ex Exchange) bool {
	var responseConn string
	if ex.Response != nil {
		responseConn = connection(ex.Response.Headers)
	}
	if rule.TokenEqual(responseConn, tokenClose) {
		return false
	}

	requestConn := connection(ex.SentHeaders)

	// Anything older than 1.1 is treated as 1.0:
	// only use keep-alive if both parties agreed upon it.
	if ex.SentVersion.Less(http.Version1_1) {
		return rule.TokenEqual(requestConn, tokenKeepAlive) &&
			rule.TokenEqual(responseConn, tokenKeepAlive)
	}

	// Persistence is the default since 1.1.
	return !rule.TokenEqual(requestConn, tokenClose)
}

func connection(h semantic.Headers) string {
	v, _ := h.Get("Connection")
	return v
}
