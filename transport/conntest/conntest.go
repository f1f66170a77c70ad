// Package conntest holds a reusable test suite for [transport.Conn] implementations.
package conntest

import (
	"bytes"
	"sync"
	"time"

	"http-exchange/transport"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// ConnSuite checks the behavior every connected pair must share.
// Embedders fill C1 and C2 in their SetupTest after calling ConnSuite.SetupTest.
type ConnSuite struct {
	suite.Suite
	C1, C2 transport.Conn
	Clock  clock.Clock

	done  chan struct{}
	timer *time.Timer
}

func (s *ConnSuite) SetupTest() {
	s.done = make(chan struct{})
	s.Clock = clock.New()

	s.timer = time.AfterFunc(2*time.Second, func() {
		select {
		case <-s.done:
		default:
			s.Fail("timeout exceeded")
		}
	})
}

func (s *ConnSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T())
	s.NoError(s.C1.Close())
	s.NoError(s.C2.Close())
	close(s.done)
	s.timer.Stop()
}

func (s *ConnSuite) TestReadWrite() {
	data := []byte("GET / HTTP/1.1\r\n")

	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Add(2)

	go func() {
		defer wg.Done()
		n, err := s.C1.Write(data)
		s.NoError(err)
		s.Equal(len(data), n)
	}()
	go func() {
		defer wg.Done()
		buf := make([]byte, 10)

		n, err := s.C2.Read(buf)
		s.NoError(err)
		s.Equal(len(buf), n)
		s.Equal(data[:n], buf)

		n, err = s.C2.Read(buf)
		s.NoError(err)
		s.Equal(len(data)-len(buf), n)
		s.Equal(data[len(buf):], buf[:n])
	}()
}

func (s *ConnSuite) TestConcurrentWritesDoNotInterleave() {
	data := []byte("ABCD")
	N := 10

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var result []byte

		b := make([]byte, 3)
		for {
			n, err := s.C2.Read(b)
			if err != nil {
				s.ErrorIs(err, transport.ErrConnClosed)
				s.Equal(bytes.Repeat(data, N), result)
				return
			}
			result = append(result, b[:n]...)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		var wwg sync.WaitGroup
		for i := 0; i < N; i++ {
			wwg.Add(1)
			go func() {
				defer wwg.Done()
				n, err := s.C1.Write(data)
				s.NoError(err)
				s.Equal(len(data), n)
			}()
		}
		wwg.Wait()
		s.NoError(s.C1.Close())
	}()
}

func (s *ConnSuite) TestClose() {
	tryReadWrite := func(conn transport.Conn) {
		buf := make([]byte, 10)

		n, err := conn.Read(buf)
		s.ErrorIs(err, transport.ErrConnClosed)
		s.Zero(n)

		n, err = conn.Write(buf)
		s.ErrorIs(err, transport.ErrConnClosed)
		s.Zero(n)
	}

	s.Require().NoError(s.C1.Close())
	tryReadWrite(s.C1)
	tryReadWrite(s.C2)
}

func (s *ConnSuite) TestReadUnblocksOnClose() {
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.C2.Read(make([]byte, 1))
		s.ErrorIs(err, transport.ErrConnClosed)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Require().NoError(s.C1.Close())
}

func (s *ConnSuite) TestWriteUnblocksOnClose() {
	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.C1.Write([]byte("unread"))
		s.ErrorIs(err, transport.ErrConnClosed)
	}()

	time.Sleep(50 * time.Millisecond)
	s.Require().NoError(s.C2.Close())
}

func (s *ConnSuite) TestReadDeadLine() {
	s.C1.SetReadDeadLine(s.Clock.Now().Add(-time.Second))

	n, err := s.C1.Read(make([]byte, 1))
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
	s.Zero(n)
}

func (s *ConnSuite) TestWriteDeadLine() {
	s.C1.SetWriteDeadLine(s.Clock.Now().Add(-time.Second))

	n, err := s.C1.Write(make([]byte, 1))
	s.ErrorIs(err, transport.ErrDeadLineExceeded)
	s.Zero(n)
}

func (s *ConnSuite) TestDeadLineCleared() {
	s.C1.SetWriteDeadLine(s.Clock.Now().Add(-time.Second))
	s.C1.SetWriteDeadLine(time.Time{})

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 2)
		n, err := s.C2.Read(buf)
		s.NoError(err)
		s.Equal("ok", string(buf[:n]))
	}()

	n, err := s.C1.Write([]byte("ok"))
	s.NoError(err)
	s.Equal(2, n)
}

func (s *ConnSuite) TestAddr() {
	local1, remote1 := s.C1.LocalAddr(), s.C1.RemoteAddr()
	local2, remote2 := s.C2.LocalAddr(), s.C2.RemoteAddr()

	s.Equal(local1, remote2)
	s.Equal(local2, remote1)
}
