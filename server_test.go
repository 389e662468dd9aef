package tcprest

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"
)

// chanTransport is an in-memory Transport: requests are fed through in,
// replies drained from out.
type chanTransport struct {
	in        chan string
	out       chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newChanTransport() *chanTransport {
	return &chanTransport{
		in:     make(chan string, 4),
		out:    make(chan string, 4),
		closed: make(chan struct{}),
	}
}

func (t *chanTransport) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-t.in:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-t.closed:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *chanTransport) WriteLine(ctx context.Context, line string) error {
	select {
	case t.out <- line:
		return nil
	case <-t.closed:
		return io.EOF
	}
}

func (t *chanTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// chanAcceptor hands out queued transports, then blocks until Close.
type chanAcceptor struct {
	transports chan Transport
	closed     chan struct{}
	closeOnce  sync.Once
}

func newChanAcceptor(ts ...Transport) *chanAcceptor {
	a := &chanAcceptor{
		transports: make(chan Transport, len(ts)),
		closed:     make(chan struct{}),
	}
	for _, t := range ts {
		a.transports <- t
	}
	return a
}

func (a *chanAcceptor) Accept(ctx context.Context) (Transport, error) {
	select {
	case t := <-a.transports:
		return t, nil
	case <-a.closed:
		return nil, errors.New("acceptor closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *chanAcceptor) Close() error {
	a.closeOnce.Do(func() { close(a.closed) })
	return nil
}

func TestServerUpServesAndDownDrains(t *testing.T) {
	conn := newChanTransport()
	server := NewServer(WithAcceptor(newChanAcceptor(conn)))
	if err := server.AddResource(demoResource{}); err != nil {
		t.Fatal(err)
	}
	server.Up()
	defer server.Down()

	intType := reflect.TypeOf(int(0))
	d := server.Dispatcher()
	req, err := EncodeV2Request(demoClassName(), "Add",
		[]reflect.Type{intType, intType},
		[]reflect.Value{reflect.ValueOf(5), reflect.ValueOf(3)},
		d.Mappers, d.Compression, d.Security)
	if err != nil {
		t.Fatal(err)
	}
	conn.in <- req

	select {
	case reply := <-conn.out:
		v, err := DecodeV2Response(reply, intType, d.Mappers, d.Compression, d.Security)
		if err != nil {
			t.Fatal(err)
		}
		if v.Interface().(int) != 8 {
			t.Errorf("got %v, want 8", v.Interface())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply within 5s")
	}
}

func TestServerDownClosesIdleConnections(t *testing.T) {
	conn := newChanTransport()
	server := NewServer(WithAcceptor(newChanAcceptor(conn)))
	if err := server.AddResource(demoResource{}); err != nil {
		t.Fatal(err)
	}
	server.Up()
	// give the accept loop a moment to hand the connection to a serve loop.
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		server.Down()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Down did not drain an idle keep-alive connection")
	}
}

func TestServerDoubleUpAndDoubleDownAreNoOps(t *testing.T) {
	server := NewServer()
	server.Up()
	server.Up()
	server.Down()
	server.Down()
}

func TestServerSettersReachDispatcher(t *testing.T) {
	server := NewServer()
	server.SetProtocolVersion(ProtocolV2Only)
	server.SetCompressionConfig(CompressionConfig{Enabled: true, ThresholdBytes: 10})
	server.SetSecurityConfig(SecurityConfig{Checksum: ChecksumCRC32})

	d := server.Dispatcher()
	if d.Mode != ProtocolV2Only {
		t.Errorf("got mode %v", d.Mode)
	}
	if !d.Compression.Enabled || d.Compression.ThresholdBytes != 10 {
		t.Errorf("got compression %+v", d.Compression)
	}
	if d.Security.Checksum != ChecksumCRC32 {
		t.Errorf("got security %+v", d.Security)
	}
}

func TestServerStrictTypeCheckRejectsUnsupportedResource(t *testing.T) {
	server := NewServer(WithStrictTypeCheck(true))
	if err := server.AddResource(strictDemoBad{}); err == nil {
		t.Fatal("expected strict mode to reject a chan parameter")
	}
	if err := server.AddResource(demoResource{}); err != nil {
		t.Fatalf("expected supported resource to register, got %v", err)
	}
}

type strictDemoBad struct{}

func (strictDemoBad) Take(ch chan int) {}
