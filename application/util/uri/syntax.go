package uri

import (
	"net/netip"
	"strings"

	"http-exchange/application/util/rule"

	"github.com/pkg/errors"
)

func containsCTL(s string) bool {
	for i := 0; i < len(s); i++ {
		if b := s[i]; b < ' ' || b == 0x7f {
			return true
		}
	}
	return false
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.2
func isSubDelim(c byte) bool {
	switch c {
	case '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=':
		return true
	}
	return false
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.3
func isUnreserved(c byte) bool {
	if rule.IsAlpha(rune(c)) || rule.IsDigit(rune(c)) {
		return true
	}
	switch c {
	case '-', '.', '_', '~':
		return true
	}
	return false
}

// consistsOf reports whether every byte of s is either percent-encoded
// or accepted by allowed.
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.1
func consistsOf(s string, allowed func(c byte) bool) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '%' {
			if i+2 >= len(s) || !rule.IsHex(rune(s[i+1])) || !rule.IsHex(rune(s[i+2])) {
				return false
			}
			i += 2
			continue
		}
		if !allowed(c) {
			return false
		}
	}
	return true
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.3
func isPchar(c byte) bool {
	return isUnreserved(c) || isSubDelim(c) || c == ':' || c == '@'
}

func isQueryOrFragment(s string) bool {
	return consistsOf(s, func(c byte) bool { return isPchar(c) || c == '/' || c == '?' })
}

func isValidUserInfo(s string) bool {
	return consistsOf(s, func(c byte) bool { return isUnreserved(c) || isSubDelim(c) || c == ':' })
}

func assertValidScheme(scheme string) error {
	if scheme == "" {
		return errors.New("scheme is empty")
	}
	if !rule.IsAlpha(rune(scheme[0])) {
		return errors.New("scheme doesn't start with ALPHA")
	}
	for i := 1; i < len(scheme); i++ {
		c := scheme[i]
		if rule.IsAlpha(rune(c)) || rule.IsDigit(rune(c)) || c == '+' || c == '-' || c == '.' {
			continue
		}
		return errors.Errorf("scheme contains invalid byte %q", c)
	}
	return nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.2.2
func assertValidHost(host string) error {
	if host == "" {
		return nil
	}
	if len(host) > 255 {
		return errors.Errorf("host length exceeds limit(255): %d", len(host))
	}

	if literal, ok := strings.CutPrefix(host, "["); ok {
		literal, ok = strings.CutSuffix(literal, "]")
		if !ok {
			return errors.New("IP literal is not closed")
		}
		if addr, err := netip.ParseAddr(literal); err == nil && addr.Is6() {
			return nil
		}
		if isIPvFuture(literal) {
			return nil
		}
		return errors.New("host is expected to be IP Literal, but was malformed")
	}

	// IPv4address is a subset of reg-name.
	if !consistsOf(host, func(c byte) bool { return isUnreserved(c) || isSubDelim(c) }) {
		return errors.New("host is neither ipv4 addr nor valid reg-name")
	}
	return nil
}

func isIPvFuture(s string) bool {
	if len(s) < 4 || s[0] != 'v' || !rule.IsHex(rune(s[1])) || s[2] != '.' {
		return false
	}
	for i := 3; i < len(s); i++ {
		c := s[i]
		if !(isUnreserved(c) || isSubDelim(c) || c == ':') {
			return false
		}
	}
	return true
}

func assertValidPath(path string, hasAuthority bool, isRelative bool) error {
	if hasAuthority {
		if path != "" && path[0] != '/' {
			return errors.New("URI with authority must either be empty or start with '/'")
		}
	} else if strings.HasPrefix(path, "//") {
		return errors.New("URI without authority should not start with '//'")
	}

	segments := strings.Split(path, "/")
	if isRelative && strings.ContainsRune(segments[0], ':') {
		return errors.New("relative URI reference's first segment should not contain ':'")
	}
	for _, segment := range segments {
		if !consistsOf(segment, isPchar) {
			return errors.Errorf("path segment %q should be pchar", segment)
		}
	}
	return nil
}
