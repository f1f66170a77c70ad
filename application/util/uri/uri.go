package uri

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type URI struct {
	Scheme    string
	Authority *Authority
	Path      string
	Query     *string
	Fragment  *string
}

type Authority struct {
	UserInfo string
	Host     string

	// NOTE: Port can be digits of any length.
	// But practically it is in range of 0 ~ 65535.
	// Reference: datatracker.ietf.org/doc/html/rfc3986#section-3.2.3
	Port *uint16
}

var ErrNotHTTP = errors.New("uri is not an absolute http(s) uri")

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-4.2
func (u URI) IsRelativeRef() bool {
	return u.Scheme == ""
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-4.3
func (u URI) IsAbsoluteURI() bool {
	return u.Scheme != "" && u.Fragment == nil
}

// Secure reports whether the scheme requires TLS.
func (u URI) Secure() bool {
	return u.Scheme == "https"
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.3
func (u URI) String() string {
	b := new(strings.Builder)
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteByte(':')
	}

	if u.Authority != nil {
		b.WriteString("//")
		b.WriteString(u.Authority.String())
	}

	b.WriteString(u.Path)

	if u.Query != nil {
		b.WriteByte('?')
		b.WriteString(*u.Query)
	}
	if u.Fragment != nil {
		b.WriteByte('#')
		b.WriteString(*u.Fragment)
	}

	return b.String()
}

// RequestTarget returns the origin-form of u.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2.1
func (u URI) RequestTarget() string {
	target := u.Path
	if target == "" {
		target = "/"
	}
	if u.Query != nil {
		target += "?" + *u.Query
	}
	return target
}

// HostPort returns host and port to connect to, falling back to the
// scheme's default port. Brackets around IP literals are stripped.
func (u URI) HostPort() (host string, port uint16, err error) {
	if u.Authority == nil || u.Authority.Host == "" {
		return "", 0, ErrNotHTTP
	}

	switch u.Scheme {
	case "http":
		port = 80
	case "https":
		port = 443
	default:
		return "", 0, ErrNotHTTP
	}
	if u.Authority.Port != nil {
		port = *u.Authority.Port
	}

	host = strings.TrimSuffix(strings.TrimPrefix(u.Authority.Host, "["), "]")
	return host, port, nil
}

// Origin returns scheme, host and port joined in canonical form.
// Reference: https://datatracker.ietf.org/doc/html/rfc6454#section-4
func (u URI) Origin() string {
	host, port, err := u.HostPort()
	if err != nil {
		return u.Scheme + "://"
	}
	return u.Scheme + "://" + net.JoinHostPort(strings.ToLower(host), strconv.Itoa(int(port)))
}

// Host returns the value for the Host header field.
// The port is omitted when it equals the scheme's default.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-7.2
func (u URI) Host() string {
	if u.Authority == nil {
		return ""
	}
	a := *u.Authority
	a.UserInfo = ""
	if a.Port != nil {
		if (u.Scheme == "http" && *a.Port == 80) || (u.Scheme == "https" && *a.Port == 443) {
			a.Port = nil
		}
	}
	return a.String()
}

func (a Authority) String() string {
	b := new(strings.Builder)
	if a.UserInfo != "" {
		b.WriteString(a.UserInfo)
		b.WriteByte('@')
	}
	b.WriteString(a.Host)
	if a.Port != nil {
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(*a.Port), 10))
	}
	return b.String()
}

func Parse(raw string) (URI, error) {
	if containsCTL(raw) {
		return URI{}, errors.New("uri should not contain CTL bytes")
	}

	var u URI

	rest := raw
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		frag := rest[i+1:]
		if !isQueryOrFragment(frag) {
			return URI{}, errors.New("fragment is not valid")
		}
		u.Fragment = &frag
		rest = rest[:i]
	}

	if i := strings.IndexByte(rest, '?'); i >= 0 {
		query := rest[i+1:]
		if !isQueryOrFragment(query) {
			return URI{}, errors.New("query is not valid")
		}
		u.Query = &query
		rest = rest[:i]
	}

	scheme, rest, err := cutScheme(rest)
	if err != nil {
		return URI{}, errors.Wrap(err, "getting scheme")
	}
	// Scheme is case-insensitive, lowercase is canonical.
	u.Scheme = strings.ToLower(scheme)

	if after, ok := strings.CutPrefix(rest, "//"); ok {
		authorityRaw := after
		rest = ""
		if i := strings.IndexByte(after, '/'); i >= 0 {
			authorityRaw, rest = after[:i], after[i:]
		}

		authority, err := parseAuthority(authorityRaw)
		if err != nil {
			return URI{}, errors.Wrap(err, "parsing authority")
		}
		u.Authority = &authority
	}

	if err := assertValidPath(rest, u.Authority != nil, u.IsRelativeRef()); err != nil {
		return URI{}, errors.Wrap(err, "path is not valid")
	}
	u.Path = rest

	return u, nil
}

// ParseHTTP parses raw and requires it to be an absolute http or https URI.
func ParseHTTP(raw string) (URI, error) {
	u, err := Parse(raw)
	if err != nil {
		return URI{}, err
	}
	if _, _, err := u.HostPort(); err != nil {
		return URI{}, errors.Wrapf(err, "%q", raw)
	}
	return u, nil
}

func cutScheme(raw string) (scheme, rest string, err error) {
	before, after, found := strings.Cut(raw, ":")
	if !found || strings.ContainsRune(before, '/') {
		// A colon after the first slash belongs to the path.
		return "", raw, nil
	}

	if err := assertValidScheme(before); err != nil {
		return "", "", err
	}
	return before, after, nil
}

func parseAuthority(raw string) (Authority, error) {
	var a Authority

	hostPort := raw
	if i := strings.LastIndexByte(raw, '@'); i >= 0 {
		a.UserInfo, hostPort = raw[:i], raw[i+1:]
		if !isValidUserInfo(a.UserInfo) {
			return Authority{}, errors.New("user information is not valid")
		}
	}

	host, portPart := hostPort, ""
	if strings.HasPrefix(hostPort, "[") {
		i := strings.LastIndexByte(hostPort, ']')
		if i < 0 {
			return Authority{}, errors.New("missing ']' in IP Literal")
		}
		host, portPart = hostPort[:i+1], hostPort[i+1:]
	} else if i := strings.LastIndexByte(hostPort, ':'); i >= 0 {
		host, portPart = hostPort[:i], hostPort[i:]
	}

	if err := assertValidHost(host); err != nil {
		return Authority{}, errors.Wrap(err, "host is not valid")
	}
	a.Host = strings.ToLower(host)

	if portPart != "" {
		if portPart[0] != ':' {
			return Authority{}, errors.New("colon delimiter not found on port")
		}
		// An empty port is allowed and means the default one.
		if digits := portPart[1:]; digits != "" {
			n, err := strconv.ParseUint(digits, 10, 16)
			if err != nil {
				return Authority{}, errors.Wrap(err, "parsing port")
			}
			port := uint16(n)
			a.Port = &port
		}
	}

	return a, nil
}
