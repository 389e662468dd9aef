package tcprest

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// DialFunc opens a fresh Transport to the server for one or more calls.
type DialFunc func() (Transport, error)

// TimeoutError is raised when a call's deadline expires before the reply
// arrives. The socket has already been closed; the reply, if it ever comes,
// is abandoned.
type TimeoutError struct {
	Method  string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to %s timed out after %s", e.Method, e.Elapsed)
}

// clientMethod is one row of the client's descriptor table: everything
// needed to frame a call to that method and decode its reply, precomputed
// from the service interface at construction.
type clientMethod struct {
	name       string
	paramTypes []reflect.Type
	resultType reflect.Type // nil for void methods
}

// Client frames remote calls against one server-side resource class.
// Instead of synthesizing an interface implementation at run time, the
// caller constructs a Client from the service interface and invokes Call by
// method name. Safe for concurrent use; each call dials its own Transport.
type Client struct {
	className   string
	dial        DialFunc
	mappers     *MapperRegistry
	compression CompressionConfig
	security    SecurityConfig
	useV1       bool
	timeout     time.Duration
	perMethod   map[string]time.Duration
	table       map[string]clientMethod
}

// ClientOption configures a Client at construction.
type ClientOption func(*Client)

// WithClientMappers replaces the client's default mapper registry.
func WithClientMappers(m *MapperRegistry) ClientOption {
	return func(c *Client) { c.mappers = m }
}

// WithClientCompression enables the compression envelope on requests and
// governs reply decompression.
func WithClientCompression(cfg CompressionConfig) ClientOption {
	return func(c *Client) { c.compression = cfg }
}

// WithClientSecurity attaches CHK/SIG trailers to requests and verifies
// them on replies.
func WithClientSecurity(cfg SecurityConfig) ClientOption {
	return func(c *Client) { c.security = cfg }
}

// WithCallTimeout sets the default per-call deadline. Zero means no deadline.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithMethodTimeout overrides the default deadline for one method.
func WithMethodTimeout(method string, d time.Duration) ClientOption {
	return func(c *Client) { c.perMethod[method] = d }
}

// WithLegacyV1 frames calls in the legacy V1 format instead of V2. V1 has
// no overload support and no structured error statuses; it exists for
// talking to servers that predate V2.
func WithLegacyV1() ClientOption {
	return func(c *Client) { c.useV1 = true }
}

// NewClient builds the descriptor table for iface (an interface type whose
// methods mirror the remote resource's) and returns a Client that frames
// calls against className over transports obtained from dial.
func NewClient(iface reflect.Type, className string, dial DialFunc, opts ...ClientOption) (*Client, error) {
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, fmt.Errorf("NewClient requires an interface type, got %v", iface)
	}
	c := &Client{
		className: className,
		dial:      dial,
		mappers:   NewMapperRegistry(),
		perMethod: map[string]time.Duration{},
		table:     map[string]clientMethod{},
	}
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		entry, err := clientMethodFor(m)
		if err != nil {
			return nil, err
		}
		c.table[m.Name] = entry
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func clientMethodFor(m reflect.Method) (clientMethod, error) {
	mt := m.Type
	entry := clientMethod{name: m.Name}
	for i := 0; i < mt.NumIn(); i++ {
		entry.paramTypes = append(entry.paramTypes, mt.In(i))
	}
	switch mt.NumOut() {
	case 0:
	case 1:
		if !mt.Out(0).Implements(errorInterfaceType) {
			entry.resultType = mt.Out(0)
		}
	case 2:
		if !mt.Out(1).Implements(errorInterfaceType) {
			return clientMethod{}, fmt.Errorf("method %s: second result must be error", m.Name)
		}
		entry.resultType = mt.Out(0)
	default:
		return clientMethod{}, fmt.Errorf("method %s returns an unsupported result shape", m.Name)
	}
	return entry, nil
}

// Call invokes methodName remotely with args and returns the decoded result
// (nil for void methods). A *RemoteError return preserves the remote
// business-vs-server-error distinction; a *TimeoutError means the deadline
// expired and the socket was closed without waiting for the reply.
func (c *Client) Call(ctx context.Context, methodName string, args ...interface{}) (interface{}, error) {
	entry, ok := c.table[methodName]
	if !ok {
		return nil, fmt.Errorf("no method %q in the client's descriptor table", methodName)
	}
	if len(args) != len(entry.paramTypes) {
		return nil, fmt.Errorf("method %s takes %d arguments, got %d", methodName, len(entry.paramTypes), len(args))
	}
	values := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			values[i] = reflect.Zero(entry.paramTypes[i])
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(entry.paramTypes[i]) {
			if v.Type().ConvertibleTo(entry.paramTypes[i]) {
				v = v.Convert(entry.paramTypes[i])
			} else {
				return nil, fmt.Errorf("argument %d of %s: cannot use %v as %v", i, methodName, v.Type(), entry.paramTypes[i])
			}
		}
		values[i] = v
	}

	request, err := c.encodeRequest(entry, values)
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(ctx, entry, request)
	if err != nil {
		return nil, err
	}
	return c.decodeReply(entry, reply)
}

func (c *Client) encodeRequest(entry clientMethod, values []reflect.Value) (string, error) {
	if c.useV1 {
		return EncodeV1Request(c.className, entry.name, values, c.mappers)
	}
	return EncodeV2Request(c.className, entry.name, entry.paramTypes, values, c.mappers, c.compression, c.security)
}

func (c *Client) decodeReply(entry clientMethod, reply string) (interface{}, error) {
	var v reflect.Value
	var err error
	if c.useV1 {
		v, err = DecodeV1Response(reply, entry.resultType, c.mappers, c.compression)
	} else {
		v, err = DecodeV2Response(reply, entry.resultType, c.mappers, c.compression, c.security)
	}
	if err != nil {
		return nil, err
	}
	if entry.resultType == nil || !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

func (c *Client) deadlineFor(method string) time.Duration {
	if d, ok := c.perMethod[method]; ok {
		return d
	}
	return c.timeout
}

// roundTrip dials, writes the request line, and waits for the reply line,
// enforcing the method's deadline by closing the transport so the blocked
// read fails promptly.
func (c *Client) roundTrip(ctx context.Context, entry clientMethod, request string) (string, error) {
	t, err := c.dial()
	if err != nil {
		return "", err
	}

	type outcome struct {
		reply string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer t.Close()
		if werr := t.WriteLine(ctx, request); werr != nil {
			done <- outcome{err: werr}
			return
		}
		reply, rerr := t.ReadLine(ctx)
		done <- outcome{reply: reply, err: rerr}
	}()

	deadline := c.deadlineFor(entry.name)
	var expire <-chan time.Time
	if deadline > 0 {
		timer := time.NewTimer(deadline)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case o := <-done:
		return o.reply, o.err
	case <-ctx.Done():
		_ = t.Close()
		return "", ctx.Err()
	case <-expire:
		_ = t.Close()
		return "", &TimeoutError{Method: entry.name, Elapsed: deadline}
	}
}
