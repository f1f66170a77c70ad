package semantic

import (
	"io"

	"http-exchange/application/http"
	"http-exchange/application/http/semantic/status"
)

type Response struct {
	Status  status.Status
	Version http.Version
	Headers Headers

	// Body is already de-framed. It reads empty when the response has no content.
	Body io.Reader
}

func ResponseFrom(head http.ResponseHead, body io.Reader) *Response {
	st, ok := status.FromCode(head.StatusCode)
	if !ok || head.ReasonPhrase != "" {
		st.ReasonPhrase = head.ReasonPhrase
	}

	return &Response{
		Status:  st,
		Version: head.Version,
		Headers: NewHeaders(head.Fields...),
		Body:    body,
	}
}

// Location returns the first Location field value.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-10.2.2
func (r *Response) Location() (string, bool) {
	return r.Headers.Get("Location")
}
