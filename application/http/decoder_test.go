package http

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"http-exchange/application/util/rule"
	bytesutil "http-exchange/util/bytes"

	"github.com/stretchr/testify/suite"
)

func newTestDecoder(input string, opts DecodeOptions) *Decoder {
	return NewDecoder(bufio.NewReader(strings.NewReader(input)), opts)
}

type DecoderTestSuite struct {
	suite.Suite
}

func TestDecoderTestSuite(t *testing.T) {
	suite.Run(t, new(DecoderTestSuite))
}

func (s *DecoderTestSuite) TestReadLine() {
	testcases := []struct {
		desc     string
		opts     DecodeOptions
		limit    uint
		input    string
		expected string
		wantErr  error
	}{
		{
			desc:     "simple line with CRLF",
			input:    "Hello\r\n",
			expected: "Hello",
		},
		{
			desc:    "line exceeding limit",
			input:   "Hey\r\n",
			limit:   1,
			wantErr: bytesutil.ErrLineTooLong,
		},
		{
			desc:    "sole LF (fail)",
			input:   "Hello\n",
			wantErr: ErrMissingCRBeforeLF,
		},
		{
			desc:     "sole LF (success)",
			opts:     DecodeOptions{AllowSoleLF: true},
			input:    "Hello\n",
			expected: "Hello",
		},
		{
			desc:     "bare CR replaced",
			input:    "Hello \r World!\r\n",
			expected: "Hello   World!",
		},
		{
			desc:     "lenient whitespace",
			opts:     DecodeOptions{LenientWhitespace: true},
			input:    "Hello" + string(rule.Whitespaces) + "World!" + "\r\n",
			expected: "Hello" + strings.Repeat(" ", len(rule.Whitespaces)) + "World!",
		},
		{
			desc:     "lenient whitespace trimmed",
			opts:     DecodeOptions{LenientWhitespace: true},
			input:    string(rule.Whitespaces) + "Hey" + string(rule.Whitespaces) + "\r\n",
			expected: "Hey",
		},
		{
			desc:    "eof before line end",
			input:   "Hello",
			wantErr: io.ErrUnexpectedEOF,
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			d := newTestDecoder(tc.input, tc.opts)

			b, err := d.readLine(tc.limit)
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}

			s.NoError(err)
			s.Equal(tc.expected, string(b))
		})
	}
}

func (s *DecoderTestSuite) TestDecodeFields() {
	testcases := []struct {
		desc     string
		opts     DecodeOptions
		input    string
		expected []Field
		wantErr  error
	}{
		{
			desc: "ordered with duplicates",
			input: "" +
				"Content-Type: text/html\r\n" +
				"Set-Cookie: a=1\r\n" +
				"Set-Cookie: b=2\r\n" +
				"Content-Length:  123 \r\n" +
				"\r\n",
			expected: []Field{
				{"Content-Type", "text/html"},
				{"Set-Cookie", "a=1"},
				{"Set-Cookie", "b=2"},
				{"Content-Length", "123"},
			},
		},
		{
			desc:     "no fields",
			input:    "\r\n",
			expected: []Field{},
		},
		{
			desc:    "field line exceeding limit",
			opts:    DecodeOptions{MaxFieldLineLength: 5},
			input:   "Content-Type: text/html\r\n\r\n",
			wantErr: ErrFieldLineTooLong,
		},
		{
			desc:    "too many fields",
			opts:    DecodeOptions{MaxFieldCount: 1},
			input:   "A: 1\r\nB: 2\r\n\r\n",
			wantErr: ErrTooManyFields,
		},
		{
			desc:    "missing colon",
			input:   "Content-Type text/html\r\n\r\n",
			wantErr: ErrMalformedFieldLine,
		},
		{
			desc:    "whitespace before colon",
			input:   "Host : example.com\r\n\r\n",
			wantErr: ErrMalformedFieldLine,
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			d := newTestDecoder(tc.input, tc.opts)

			fields, err := d.decodeFields()
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}

			s.NoError(err)
			s.Equal(tc.expected, fields)
		})
	}
}

func (s *DecoderTestSuite) TestDecodeRequestHead() {
	body := "field1=value1"
	raw := "" +
		"\r\n" + // leading empty line.
		"POST /example HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" +
		body

	br := bufio.NewReader(strings.NewReader(raw))
	head, err := NewDecoder(br, DefaultDecodeOptions).DecodeRequestHead()
	s.Require().NoError(err)

	s.Equal(RequestHead{
		Method:  "POST",
		Target:  "/example",
		Version: Version1_1,
		Fields: []Field{
			{"Host", "example.com"},
			{"Content-Length", "13"},
		},
	}, head)

	rest, err := io.ReadAll(br)
	s.NoError(err)
	s.Equal(body, string(rest))
}

func (s *DecoderTestSuite) TestDecodeRequestHeadInvalid() {
	testcases := []struct {
		desc    string
		input   string
		opts    DecodeOptions
		wantErr error
	}{
		{
			desc:    "double space",
			input:   "GET  /abc HTTP/1.1\r\n\r\n",
			wantErr: ErrMalformedRequestLine,
		},
		{
			desc:    "invalid method",
			input:   "G(T /abc HTTP/1.1\r\n\r\n",
			wantErr: ErrMalformedRequestLine,
		},
		{
			desc:    "length limit exceeded",
			input:   "GETTTTTTTTTTTTTTTTTTTTTTTTTT /abc HTTP/1.1\r\n\r\n",
			opts:    DecodeOptions{MaxStartLineLength: 20},
			wantErr: ErrStartLineTooLong,
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			_, err := newTestDecoder(tc.input, tc.opts).DecodeRequestHead()
			s.ErrorIs(err, tc.wantErr)
		})
	}
}

func (s *DecoderTestSuite) TestDecodeResponseHead() {
	testcases := []struct {
		desc     string
		input    string
		expected ResponseHead
		wantErr  error
	}{
		{
			desc:  "with reason phrase",
			input: "HTTP/1.1 302 Found\r\nLocation: /next\r\n\r\n",
			expected: ResponseHead{
				Version:      Version1_1,
				StatusCode:   302,
				ReasonPhrase: "Found",
				Fields:       []Field{{"Location", "/next"}},
			},
		},
		{
			desc:  "empty reason phrase",
			input: "HTTP/1.0 200 \r\n\r\n",
			expected: ResponseHead{
				Version:    Version1_0,
				StatusCode: 200,
				Fields:     []Field{},
			},
		},
		{
			desc:  "missing reason phrase",
			input: "HTTP/1.1 204\r\n\r\n",
			expected: ResponseHead{
				Version:    Version1_1,
				StatusCode: 204,
				Fields:     []Field{},
			},
		},
		{
			desc:  "reason phrase with spaces",
			input: "HTTP/1.1 307 Temporary Redirect\r\n\r\n",
			expected: ResponseHead{
				Version:      Version1_1,
				StatusCode:   307,
				ReasonPhrase: "Temporary Redirect",
				Fields:       []Field{},
			},
		},
		{
			desc:    "two digit status",
			input:   "HTTP/1.1 20 OK\r\n\r\n",
			wantErr: ErrMalformedStatusLine,
		},
		{
			desc:    "bad version",
			input:   "HTTX/1.1 200 OK\r\n\r\n",
			wantErr: ErrMalformedStatusLine,
		},
	}
	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			head, err := newTestDecoder(tc.input, DefaultDecodeOptions).DecodeResponseHead()
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}

			s.NoError(err)
			s.Equal(tc.expected, head)
		})
	}
}
