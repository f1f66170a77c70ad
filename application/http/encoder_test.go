package http

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
)

type EncoderTestSuite struct {
	suite.Suite
}

func TestEncoderTestSuite(t *testing.T) {
	suite.Run(t, new(EncoderTestSuite))
}

func (s *EncoderTestSuite) TestWriteLine() {
	testcases := []struct {
		desc     string
		input    []byte
		opts     EncodeOptions
		expected string
	}{
		{
			desc:     "simple line with CRLF",
			input:    []byte("Hello"),
			expected: "Hello\r\n",
		},
		{
			desc:     "simple line with LF",
			input:    []byte("Hello"),
			opts:     EncodeOptions{UseSoleLF: true},
			expected: "Hello\n",
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			var buf bytes.Buffer
			bw := bufio.NewWriter(&buf)
			e := NewEncoder(bw, tc.opts)

			s.NoError(e.writeLine(tc.input))
			s.NoError(bw.Flush())
			s.Equal(tc.expected, buf.String())
		})
	}
}

func (s *EncoderTestSuite) TestEncodeRequestHead() {
	var buf bytes.Buffer
	e := NewEncoder(bufio.NewWriter(&buf), DefaultEncodeOptions)

	err := e.EncodeRequestHead(RequestHead{
		Method:  "POST",
		Target:  "/submit?x=1",
		Version: Version1_1,
		Fields: []Field{
			{"Host", "example.com"},
			{"X-Redirect", "301"},
			{"X-Redirect", "again"},
		},
	})
	s.Require().NoError(err)

	s.Equal(""+
		"POST /submit?x=1 HTTP/1.1\r\n"+
		"Host: example.com\r\n"+
		"X-Redirect: 301\r\n"+
		"X-Redirect: again\r\n"+
		"\r\n", buf.String())
}

func (s *EncoderTestSuite) TestEncodeRequestHeadInvalid() {
	testcases := []struct {
		desc string
		head RequestHead
	}{
		{
			desc: "invalid method",
			head: RequestHead{Method: "GE T", Target: "/", Version: Version1_1},
		},
		{
			desc: "empty target",
			head: RequestHead{Method: "GET", Version: Version1_1},
		},
		{
			desc: "invalid field name",
			head: RequestHead{Method: "GET", Target: "/", Version: Version1_1, Fields: []Field{{"Bad Name", "v"}}},
		},
		{
			desc: "field value with newline",
			head: RequestHead{Method: "GET", Target: "/", Version: Version1_1, Fields: []Field{{"X-Injected", "a\r\nEvil: 1"}}},
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			var buf bytes.Buffer
			e := NewEncoder(bufio.NewWriter(&buf), DefaultEncodeOptions)
			s.Error(e.EncodeRequestHead(tc.head))
		})
	}
}

func (s *EncoderTestSuite) TestEncodeResponseHead() {
	var buf bytes.Buffer
	e := NewEncoder(bufio.NewWriter(&buf), DefaultEncodeOptions)

	err := e.EncodeResponseHead(ResponseHead{
		Version:      Version1_1,
		StatusCode:   307,
		ReasonPhrase: "Temporary Redirect",
		Fields:       []Field{{"Location", "/next"}},
	})
	s.Require().NoError(err)

	s.Equal(""+
		"HTTP/1.1 307 Temporary Redirect\r\n"+
		"Location: /next\r\n"+
		"\r\n", buf.String())
}
