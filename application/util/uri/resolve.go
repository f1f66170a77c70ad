package uri

import (
	"strings"

	"http-exchange/lib/ds/stack"

	"github.com/pkg/errors"
)

type RefResolver struct {
	base URI
}

func NewRefResolver(base URI) (*RefResolver, error) {
	if base.IsRelativeRef() {
		return nil, errors.New("base uri cannot be relative ref")
	}
	return &RefResolver{base: base}, nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.2
func (rr *RefResolver) Resolve(ref URI) URI {
	out := ref
	switch {
	case ref.Scheme != "":
	case ref.Authority != nil:
		out.Scheme = rr.base.Scheme
	case ref.Path == "":
		out.Scheme = rr.base.Scheme
		out.Authority = rr.base.Authority
		out.Path = rr.base.Path
		if ref.Query == nil {
			out.Query = rr.base.Query
		}
	default:
		out.Scheme = rr.base.Scheme
		out.Authority = rr.base.Authority
		if !strings.HasPrefix(ref.Path, "/") {
			out.Path = mergePath(rr.base, ref)
		}
	}

	out.Path = removeDotSegments(out.Path)
	return out
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.3
func mergePath(base, ref URI) string {
	if base.Authority != nil && base.Path == "" {
		return "/" + ref.Path
	}
	if i := strings.LastIndexByte(base.Path, '/'); i >= 0 {
		return base.Path[:i+1] + ref.Path
	}
	return ref.Path
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.4
func removeDotSegments(path string) string {
	out := stack.New[string](0)

	for len(path) > 0 {
		var found bool
		// Leading "../" and "./" are dropped.
		if path, found = strings.CutPrefix(path, "../"); found {
			continue
		}
		if path, found = strings.CutPrefix(path, "./"); found {
			continue
		}

		if path, found = strings.CutPrefix(path, "/./"); found {
			path = "/" + path
			continue
		} else if path == "/." {
			path = "/"
			continue
		}

		// "/.." removes the last output segment.
		if path, found = strings.CutPrefix(path, "/../"); found {
			_, _ = out.Pop()
			path = "/" + path
			continue
		} else if path == "/.." {
			_, _ = out.Pop()
			path = "/"
			continue
		}

		if path == ".." || path == "." {
			break
		}

		idx := strings.IndexByte(path[1:], '/') + 1
		if idx == 0 {
			idx = len(path)
		}
		out.Push(path[:idx])
		path = path[idx:]
	}

	return strings.Join(out.Data(), "")
}
