// Package http implements the HTTP/1.x message syntax used by the exchange
// engine: version and field lines, request and response heads, and their
// encoder and decoder. Message semantics live in the semantic package.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
