package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/liweinan/tcprest"
)

// ErrAcceptorClosed is returned by Accept once the acceptor is closed.
var ErrAcceptorClosed = errors.New("transport: acceptor closed")

// StreamAcceptor adapts a net.Listener (TCP, Unix-domain, or TLS-wrapped)
// into a tcprest.Acceptor: every accepted connection becomes one
// StreamTransport serving frames in sequence.
type StreamAcceptor struct {
	listener net.Listener
}

func NewStreamAcceptor(l net.Listener) *StreamAcceptor {
	return &StreamAcceptor{listener: l}
}

func (a *StreamAcceptor) Accept(ctx context.Context) (tcprest.Transport, error) {
	conn, err := a.listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewStreamTransport(conn), nil
}

func (a *StreamAcceptor) Close() error {
	return a.listener.Close()
}

// Addr exposes the bound address, mostly for logging and for tests that
// listen on port 0.
func (a *StreamAcceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// DatagramAcceptor adapts one bound UDP socket into a tcprest.Acceptor.
// A datagram socket has no per-peer connections, so Accept hands out the
// single DatagramTransport exactly once; the server then serves every
// packet through it, one worker draining the socket in request order.
type DatagramAcceptor struct {
	once      sync.Once
	transport *DatagramTransport
	handout   chan *DatagramTransport
	closed    chan struct{}
}

func NewDatagramAcceptor(conn *net.UDPConn, maxBytes int) *DatagramAcceptor {
	a := &DatagramAcceptor{
		transport: NewDatagramTransport(conn, maxBytes),
		handout:   make(chan *DatagramTransport, 1),
		closed:    make(chan struct{}),
	}
	a.handout <- a.transport
	return a
}

func (a *DatagramAcceptor) Accept(ctx context.Context) (tcprest.Transport, error) {
	select {
	case t := <-a.handout:
		return t, nil
	case <-a.closed:
		return nil, ErrAcceptorClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *DatagramAcceptor) Close() error {
	var err error
	a.once.Do(func() {
		close(a.closed)
		err = a.transport.Close()
	})
	return err
}
