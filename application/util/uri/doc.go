// Package uri parses and resolves the URI references carried by request
// targets and Location fields. Components are kept in their escaped form
// so a parsed reference can be put back on the wire unchanged.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc3986
package uri
