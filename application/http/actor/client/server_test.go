package client

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"http-exchange/application/http"
	"http-exchange/application/http/semantic"
	"http-exchange/application/http/semantic/status"
	"http-exchange/application/http/transfer"
	"http-exchange/transport"
	"http-exchange/transport/pipe"

	"github.com/pkg/errors"
)

// received is a request as seen by the test server.
type received struct {
	Method  string
	Target  string
	Version http.Version
	Headers semantic.Headers
	Body    string
}

type reply struct {
	Status  uint
	Fields  []http.Field
	Body    string
	Chunked bool
	// Close closes the connection after the reply.
	Close bool
}

type handlerFunc func(req received) reply

// testServer answers requests on a pipe listener, one connection per goroutine.
type testServer struct {
	lis     *pipe.Listener
	handler handlerFunc

	accepted atomic.Int32
	requests atomic.Int32

	mu    sync.Mutex
	conns []transport.Conn

	wg sync.WaitGroup
}

func startServer(pt *pipe.Transport, addr transport.Addr, handler handlerFunc) (*testServer, error) {
	lis, err := pt.Listen(addr)
	if err != nil {
		return nil, err
	}

	srv := &testServer{lis: lis, handler: handler}
	srv.wg.Add(1)
	go srv.acceptLoop()

	return srv, nil
}

func (srv *testServer) acceptLoop() {
	defer srv.wg.Done()
	for {
		conn, err := srv.lis.Accept(context.Background())
		if err != nil {
			return
		}
		srv.accepted.Add(1)

		srv.mu.Lock()
		srv.conns = append(srv.conns, conn)
		srv.mu.Unlock()

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			defer conn.Close()
			srv.serve(conn)
		}()
	}
}

func (srv *testServer) serve(conn transport.Conn) {
	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)
	dec := http.NewDecoder(br, http.DefaultDecodeOptions)
	enc := http.NewEncoder(bw, http.DefaultEncodeOptions)

	for {
		req, err := readRequest(dec, br)
		if err != nil {
			return
		}
		srv.requests.Add(1)

		rep := srv.handler(req)
		if err := writeReply(enc, bw, rep); err != nil || rep.Close {
			return
		}
	}
}

func readRequest(dec *http.Decoder, br *bufio.Reader) (received, error) {
	head, err := dec.DecodeRequestHead()
	if err != nil {
		return received{}, err
	}

	req := received{
		Method:  head.Method,
		Target:  head.Target,
		Version: head.Version,
		Headers: semantic.NewHeaders(head.Fields...),
	}

	var r io.Reader
	codings, err := semantic.TransferCodings(req.Headers)
	if err != nil {
		return received{}, err
	}
	length, hasLength, err := semantic.ContentLength(req.Headers)
	if err != nil {
		return received{}, err
	}

	switch {
	case transfer.IsChunked(codings):
		r = transfer.NewChunkedReader(br)
	case hasLength:
		r = io.LimitReader(br, int64(length))
	default:
		return req, nil
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return received{}, errors.Wrap(err, "reading request body")
	}
	req.Body = string(b)
	return req, nil
}

func writeReply(enc *http.Encoder, bw *bufio.Writer, rep reply) error {
	st, ok := status.FromCode(rep.Status)
	if !ok {
		st = status.Status{Code: rep.Status}
	}

	fields := append([]http.Field{}, rep.Fields...)
	if rep.Chunked {
		fields = append(fields, http.Field{Name: "Transfer-Encoding", Value: "chunked"})
	} else {
		fields = append(fields, http.Field{Name: "Content-Length", Value: strconv.Itoa(len(rep.Body))})
	}

	err := enc.EncodeResponseHead(http.ResponseHead{
		Version:      http.Version1_1,
		StatusCode:   st.Code,
		ReasonPhrase: st.ReasonPhrase,
		Fields:       fields,
	})
	if err != nil {
		return err
	}

	if rep.Chunked {
		cw := transfer.NewChunkedWriter(bw)
		if _, err := cw.Write([]byte(rep.Body)); err != nil {
			return err
		}
		if err := cw.Close(); err != nil {
			return err
		}
	} else if _, err := bw.WriteString(rep.Body); err != nil {
		return err
	}

	return bw.Flush()
}

// Close stops accepting and closes server side connections.
func (srv *testServer) Close() {
	srv.lis.Close()

	srv.mu.Lock()
	for _, conn := range srv.conns {
		conn.Close()
	}
	srv.mu.Unlock()

	srv.wg.Wait()
}
