package tcprest

import (
	"context"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"
)

// loopbackTransport feeds written lines straight into a Dispatcher and
// hands the reply back on the next read, so client tests run the full wire
// path without a socket.
type loopbackTransport struct {
	d         *Dispatcher
	replies   chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newLoopbackTransport(d *Dispatcher) *loopbackTransport {
	return &loopbackTransport{d: d, replies: make(chan string, 1), closed: make(chan struct{})}
}

func (t *loopbackTransport) WriteLine(ctx context.Context, line string) error {
	result := t.d.HandleLine(line)
	t.replies <- result.Reply
	return nil
}

func (t *loopbackTransport) ReadLine(ctx context.Context) (string, error) {
	select {
	case reply := <-t.replies:
		return reply, nil
	case <-t.closed:
		return "", io.EOF
	}
}

func (t *loopbackTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// calculatorService mirrors the remote resource's methods; the client
// derives its descriptor table from this interface.
type calculatorService interface {
	Add(a, b int) int
	Echo(s string) string
	ValidateAge(age int) (int, error)
}

func newLoopbackClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	d := newDemoDispatcher()
	dial := func() (Transport, error) { return newLoopbackTransport(d), nil }
	c, err := NewClient(reflect.TypeOf((*calculatorService)(nil)).Elem(), demoClassName(), dial, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClientCallRoundTrip(t *testing.T) {
	c := newLoopbackClient(t)
	got, err := c.Call(context.Background(), "Add", 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int) != 8 {
		t.Errorf("got %v, want 8", got)
	}
}

func TestClientCallBusinessErrorPreservesKind(t *testing.T) {
	c := newLoopbackClient(t)
	_, err := c.Call(context.Background(), "ValidateAge", -1)
	if err == nil {
		t.Fatal("expected business error")
	}
	re := AsRemoteError(err)
	if re.Kind != KindBusiness {
		t.Errorf("got kind %v", re.Kind)
	}
	if re.Message != "Age must be non-negative" {
		t.Errorf("got message %q", re.Message)
	}
}

func TestClientCallUnknownMethod(t *testing.T) {
	c := newLoopbackClient(t)
	_, err := c.Call(context.Background(), "NoSuchMethod")
	if err == nil {
		t.Fatal("expected descriptor-table miss")
	}
}

func TestClientCallArgumentCountMismatch(t *testing.T) {
	c := newLoopbackClient(t)
	_, err := c.Call(context.Background(), "Add", 1)
	if err == nil {
		t.Fatal("expected argument count mismatch")
	}
}

func TestClientLegacyV1Call(t *testing.T) {
	c := newLoopbackClient(t, WithLegacyV1())
	got, err := c.Call(context.Background(), "Add", 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int) != 4 {
		t.Errorf("got %v, want 4", got)
	}
}

// stallTransport accepts the request and then never replies, simulating a
// hung server.
type stallTransport struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func newStallTransport() *stallTransport {
	return &stallTransport{closed: make(chan struct{})}
}

func (t *stallTransport) WriteLine(ctx context.Context, line string) error { return nil }

func (t *stallTransport) ReadLine(ctx context.Context) (string, error) {
	<-t.closed
	return "", io.EOF
}

func (t *stallTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func TestClientCallTimeoutClosesSocket(t *testing.T) {
	stall := newStallTransport()
	dial := func() (Transport, error) { return stall, nil }
	c, err := NewClient(reflect.TypeOf((*calculatorService)(nil)).Elem(), demoClassName(), dial,
		WithCallTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	_, err = c.Call(context.Background(), "Add", 1, 2)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if _, ok := err.(*TimeoutError); !ok {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s, expected prompt expiry", elapsed)
	}
	select {
	case <-stall.closed:
	case <-time.After(time.Second):
		t.Error("expected the transport to be closed on timeout")
	}
}

func TestClientPerMethodTimeoutOverridesDefault(t *testing.T) {
	c := newLoopbackClient(t,
		WithCallTimeout(time.Nanosecond),
		WithMethodTimeout("Add", 5*time.Second))
	got, err := c.Call(context.Background(), "Add", 5, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.(int) != 8 {
		t.Errorf("got %v, want 8", got)
	}
}

func TestNewClientRejectsNonInterface(t *testing.T) {
	dial := func() (Transport, error) { return nil, nil }
	if _, err := NewClient(reflect.TypeOf(demoResource{}), demoClassName(), dial); err == nil {
		t.Fatal("expected non-interface type to be rejected")
	}
}
