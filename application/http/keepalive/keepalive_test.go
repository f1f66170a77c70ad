package keepalive

import (
	"fmt"
	"testing"

	"http-exchange/application/http"
	"http-exchange/application/http/semantic"

	"github.com/stretchr/testify/assert"
)

func exchange(ver http.Version, reqConn, resConn string) Exchange {
	var sent, received semantic.Headers
	if reqConn != "" {
		sent.Add("Connection", reqConn)
	}
	if resConn != "" {
		received.Add("Connection", resConn)
	}
	return Exchange{
		SentVersion: ver,
		SentHeaders: sent,
		Response:    &semantic.Response{Version: ver, Headers: received},
	}
}

func TestDefaultHTTP10(t *testing.T) {
	testcases := []struct {
		reqConn  string
		resConn  string
		expected bool
	}{
		{reqConn: "", resConn: "", expected: false},
		{reqConn: "keep-alive", resConn: "", expected: false},
		{reqConn: "", resConn: "keep-alive", expected: false},
		{reqConn: "keep-alive", resConn: "keep-alive", expected: true},
		{reqConn: "Keep-Alive", resConn: "KEEP-ALIVE", expected: true},
		{reqConn: "keep-alive", resConn: "close", expected: false},
		{reqConn: "close", resConn: "keep-alive", expected: false},
	}
	for _, tc := range testcases {
		t.Run(fmt.Sprintf("req=%q res=%q", tc.reqConn, tc.resConn), func(t *testing.T) {
			assert.Equal(t, tc.expected, Default.KeepAlive(exchange(http.Version1_0, tc.reqConn, tc.resConn)))
			// Older versions follow 1.0.
			assert.Equal(t, tc.expected, Default.KeepAlive(exchange(http.Version{0, 9}, tc.reqConn, tc.resConn)))
		})
	}
}

func TestDefaultHTTP11(t *testing.T) {
	testcases := []struct {
		reqConn  string
		resConn  string
		expected bool
	}{
		{reqConn: "", resConn: "", expected: true},
		{reqConn: "keep-alive", resConn: "", expected: true},
		{reqConn: "", resConn: "close", expected: false},
		{reqConn: "", resConn: " Close ", expected: false},
		{reqConn: "close", resConn: "", expected: false},
		{reqConn: "CLOSE", resConn: "keep-alive", expected: false},
		{reqConn: "", resConn: "keep-alive", expected: true},
		{reqConn: "Upgrade", resConn: "", expected: true},
	}
	for _, tc := range testcases {
		t.Run(fmt.Sprintf("req=%q res=%q", tc.reqConn, tc.resConn), func(t *testing.T) {
			assert.Equal(t, tc.expected, Default.KeepAlive(exchange(http.Version1_1, tc.reqConn, tc.resConn)))
			assert.Equal(t, tc.expected, Default.KeepAlive(exchange(http.Version{2, 0}, tc.reqConn, tc.resConn)))
		})
	}
}

func TestDefaultIsDeterministic(t *testing.T) {
	ex := exchange(http.Version1_1, "", "")
	for i := 0; i < 10; i++ {
		assert.True(t, Default.KeepAlive(ex))
	}
}

func TestNever(t *testing.T) {
	assert.False(t, Never.KeepAlive(exchange(http.Version1_1, "keep-alive", "keep-alive")))
}

func TestStrategyFunc(t *testing.T) {
	var got Exchange
	s := StrategyFunc(func(ex Exchange) bool {
		got = ex
		return true
	})

	ex := exchange(http.Version1_0, "", "")
	assert.True(t, s.KeepAlive(ex))
	assert.Equal(t, ex, got)
}
