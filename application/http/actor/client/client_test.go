package client

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"http-exchange/application/http"
	"http-exchange/application/http/body"
	"http-exchange/application/http/keepalive"
	"http-exchange/application/http/semantic"
	"http-exchange/application/http/semantic/status"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type scriptedReply struct {
	code     uint
	location string
	fields   []http.Field
	err      error
}

// fakeTransport answers with scripted replies and records what it was given.
type fakeTransport struct {
	replies []scriptedReply

	sent     []*semantic.Request
	released []bool
}

func (t *fakeTransport) Send(_ context.Context, req *semantic.Request, bt *body.ChunkedTransport) (*Roundtrip, error) {
	if bt != nil {
		defer bt.Close()
	}
	t.sent = append(t.sent, req)

	if len(t.replies) == 0 {
		return nil, errors.New("no more replies")
	}
	r := t.replies[0]
	t.replies = t.replies[1:]

	if r.err != nil {
		return nil, r.err
	}

	st, _ := status.FromCode(r.code)
	res := &semantic.Response{
		Status:  st,
		Version: http.Version1_1,
		Headers: semantic.NewHeaders(r.fields...),
		Body:    strings.NewReader(""),
	}
	if r.location != "" {
		res.Headers.Add("Location", r.location)
	}

	sentHeaders := req.Headers.Clone()
	return NewRoundtrip(res, req.Version, sentHeaders, func(keepAlive bool) error {
		t.released = append(t.released, keepAlive)
		return nil
	}), nil
}

type ClientTestSuite struct {
	suite.Suite

	transport *fakeTransport
	opts      Options
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.transport = &fakeTransport{}
	s.opts = DefaultOptions()
}

func (s *ClientTestSuite) do(req *semantic.Request) (*Result, error) {
	c := New(s.transport, slog.New(slog.NewTextHandler(io.Discard, nil)), s.opts)
	return c.Do(context.Background(), req)
}

func (s *ClientTestSuite) newRequest(method semantic.Method, rawURI string, src body.Source, fields ...http.Field) *semantic.Request {
	req, err := semantic.NewRequest(method, rawURI, src, fields...)
	s.Require().NoError(err)
	return req
}

func (s *ClientTestSuite) TestSingleAttempt() {
	s.transport.replies = []scriptedReply{{code: 200}}

	res, err := s.do(s.newRequest(semantic.MethodGet, "http://a.test/", nil))
	s.Require().NoError(err)

	s.Equal(uint(1), res.Attempts)
	s.Zero(res.Redirects)
	s.True(res.KeepAlive)
	s.Empty(s.transport.released)

	s.NoError(res.Close())
	s.NoError(res.Close())
	s.Equal([]bool{true}, s.transport.released)
}

func (s *ClientTestSuite) TestIntermediateResponsesReleased() {
	s.transport.replies = []scriptedReply{
		{code: 302, location: "/b", fields: []http.Field{{Name: "Connection", Value: "close"}}},
		{code: 307, location: "/c"},
		{code: 200},
	}

	res, err := s.do(s.newRequest(semantic.MethodGet, "http://a.test/a", nil))
	s.Require().NoError(err)

	// Verdicts of both redirect responses, in order.
	s.Equal([]bool{false, true}, s.transport.released)
	s.Equal(uint(2), res.Redirects)
	s.Equal(uint(3), res.Attempts)
	s.Equal("/c", res.URI.Path)

	s.Require().Len(res.Hops, 3)
	s.False(res.Hops[0].KeepAlive)
	s.True(res.Hops[1].KeepAlive)

	s.Require().Len(s.transport.sent, 3)
	s.Equal("/a", s.transport.sent[0].URI.Path)
	s.Equal("/b", s.transport.sent[1].URI.Path)
}

func (s *ClientTestSuite) TestStrategyConsulted() {
	s.transport.replies = []scriptedReply{{code: 200}}

	var seen keepalive.Exchange
	s.opts.KeepAlive = keepalive.StrategyFunc(func(ex keepalive.Exchange) bool {
		seen = ex
		return false
	})

	req := s.newRequest(semantic.MethodGet, "http://a.test/", nil, http.Field{Name: "Connection", Value: "keep-alive"})
	res, err := s.do(req)
	s.Require().NoError(err)

	s.False(res.KeepAlive)
	s.Equal(http.Version1_1, seen.SentVersion)
	v, _ := seen.SentHeaders.Get("Connection")
	s.Equal("keep-alive", v)
	s.Same(res.Response, seen.Response)
}

func (s *ClientTestSuite) TestNilStrategyUsesDefault() {
	s.transport.replies = []scriptedReply{{code: 200, fields: []http.Field{{Name: "Connection", Value: "Close"}}}}
	s.opts.KeepAlive = nil

	res, err := s.do(s.newRequest(semantic.MethodGet, "http://a.test/", nil))
	s.Require().NoError(err)
	s.False(res.KeepAlive)
}

func (s *ClientTestSuite) TestTransportErrorIsTerminal() {
	cause := errors.New("connection reset")
	s.transport.replies = []scriptedReply{
		{code: 301, location: "/next"},
		{err: cause},
		{code: 200},
	}

	_, err := s.do(s.newRequest(semantic.MethodGet, "http://a.test/", nil))

	var transportErr *TransportError
	s.Require().ErrorAs(err, &transportErr)
	s.Equal(uint(2), transportErr.Attempt)
	s.Equal("/next", transportErr.URI.Path)
	s.ErrorIs(err, cause)

	// Not retried.
	s.Len(s.transport.sent, 2)
}

func (s *ClientTestSuite) TestRequestNotMutated() {
	s.transport.replies = []scriptedReply{{code: 303, location: "/other"}, {code: 200}}

	req := s.newRequest(semantic.MethodPost, "http://a.test/form", body.String("a=1"),
		http.Field{Name: "Content-Type", Value: "application/x-www-form-urlencoded"})

	_, err := s.do(req)
	s.Require().NoError(err)

	s.Equal(semantic.MethodPost, req.Method)
	s.Equal("/form", req.URI.Path)
	s.True(req.Headers.Has("Content-Type"))
	s.NotNil(req.Body)

	s.Equal(semantic.MethodGet, s.transport.sent[1].Method)
	s.Nil(s.transport.sent[1].Body)
}

func (s *ClientTestSuite) TestBodyTransportClosedByTransport() {
	s.transport.replies = []scriptedReply{{code: 200}}

	src := &closeCounter{Source: body.String("x")}
	_, err := s.do(s.newRequest(semantic.MethodPost, "http://a.test/", src))
	s.Require().NoError(err)
	s.Equal(int32(1), src.closes.Load())
}

func TestStateString(t *testing.T) {
	testcases := []struct {
		state    state
		expected string
	}{
		{stateInit, "init"},
		{stateSending, "sending"},
		{stateDeciding, "deciding"},
		{stateDone, "done"},
		{stateFailed, "failed"},
		{state(42), "state(42)"},
	}

	for _, tc := range testcases {
		assert.Equal(t, tc.expected, tc.state.String())
	}
}

func TestRoundtripReleaseOnce(t *testing.T) {
	calls := 0
	rt := NewRoundtrip(&semantic.Response{Body: strings.NewReader("")}, http.Version1_1, semantic.Headers{}, func(bool) error {
		calls++
		return errors.New("broken")
	})

	assert.Error(t, rt.Release(true))
	assert.Error(t, rt.Release(false))
	assert.Equal(t, 1, calls)
}
