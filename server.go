package tcprest

import (
	"context"
	"sync"
)

// Acceptor produces one Transport per accepted peer. It is the only
// contract a Server needs from a listening socket: the concrete stream and
// datagram listeners live outside this package, next to the
// Transport implementations they hand out.
type Acceptor interface {
	// Accept blocks for the next peer. After Close it must return an error
	// so the serve loop can exit.
	Accept(ctx context.Context) (Transport, error)
	Close() error
}

// Server owns one engine instance: a resource registry, a mapper registry,
// security and compression configuration, and the acceptors it serves over.
// It is the process-facing surface of the engine: resources and mappers are
// registered on it, configuration is installed on it, and Up/Down bound its
// serving lifetime. Configuration setters are meant for the window before
// Up; the registries themselves stay mutable while serving.
type Server struct {
	dispatcher *Dispatcher
	acceptors  []Acceptor

	mu      sync.Mutex
	cancel  context.CancelFunc
	serving sync.WaitGroup
	conns   map[Transport]struct{}
	up      bool
}

// ServerOption configures a Server at construction.
type ServerOption func(*Server)

// WithAcceptor adds a listening socket the server will serve once Up.
func WithAcceptor(a Acceptor) ServerOption {
	return func(s *Server) { s.acceptors = append(s.acceptors, a) }
}

// WithSecurityConfig installs cfg; equivalent to SetSecurityConfig.
func WithSecurityConfig(cfg SecurityConfig) ServerOption {
	return func(s *Server) { s.dispatcher.Security = cfg }
}

// WithCompressionConfig installs cfg; equivalent to SetCompressionConfig.
func WithCompressionConfig(cfg CompressionConfig) ServerOption {
	return func(s *Server) { s.dispatcher.Compression = cfg }
}

// WithProtocolVersion restricts accepted frame versions; equivalent to
// SetProtocolVersion.
func WithProtocolVersion(mode ProtocolMode) ServerOption {
	return func(s *Server) { s.dispatcher.Mode = mode }
}

// WithStrictTypeCheck enables strict resource-type validation; equivalent
// to SetStrictTypeCheck.
func WithStrictTypeCheck(strict bool) ServerOption {
	return func(s *Server) { s.dispatcher.Registry.SetStrict(strict) }
}

// NewServer builds a Server with fresh registries, then applies opts.
func NewServer(opts ...ServerOption) *Server {
	registry := NewResourceRegistry(false)
	dispatcher := NewDispatcher(registry)
	registry.SetMapperRegistry(dispatcher.Mappers)
	s := &Server{dispatcher: dispatcher}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatcher exposes the underlying dispatcher for callers that drive a
// Transport themselves (Serve) instead of going through Up.
func (s *Server) Dispatcher() *Dispatcher { return s.dispatcher }

func (s *Server) AddResource(sample interface{}) error {
	return s.dispatcher.Registry.AddResource(sample)
}

// AddResourceAs also registers the class under explicit wire names, for
// clients that frame calls with a short class name rather than the Go
// canonical one.
func (s *Server) AddResourceAs(sample interface{}, names ...string) error {
	return s.dispatcher.Registry.AddResourceAs(sample, names...)
}

func (s *Server) AddSingletonResource(instance interface{}) error {
	return s.dispatcher.Registry.AddSingletonResource(instance)
}

func (s *Server) RemoveResource(className string) {
	s.dispatcher.Registry.RemoveResource(className)
}

func (s *Server) RemoveSingletonResource(className string) {
	s.dispatcher.Registry.RemoveSingletonResource(className)
}

// AddMapper installs (or overrides) the mapper used for typeName, for both
// parameter decoding and return-value encoding.
func (s *Server) AddMapper(typeName string, m Mapper) {
	s.dispatcher.Mappers.Register(typeName, m)
}

func (s *Server) SetSecurityConfig(cfg SecurityConfig)       { s.dispatcher.Security = cfg }
func (s *Server) SetCompressionConfig(cfg CompressionConfig) { s.dispatcher.Compression = cfg }
func (s *Server) SetProtocolVersion(mode ProtocolMode)       { s.dispatcher.Mode = mode }
func (s *Server) SetStrictTypeCheck(strict bool)             { s.dispatcher.Registry.SetStrict(strict) }

// Up starts one accept loop per configured acceptor and returns
// immediately. Each accepted Transport is served on its own goroutine, so
// concurrency is exactly what the transports deliver. Calling Up
// on a server that is already up is a no-op.
func (s *Server) Up() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.up {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.conns = map[Transport]struct{}{}
	s.up = true
	for _, a := range s.acceptors {
		s.serving.Add(1)
		go s.acceptLoop(ctx, a)
	}
}

func (s *Server) acceptLoop(ctx context.Context, a Acceptor) {
	defer s.serving.Done()
	for {
		t, err := a.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				log.Error("accept error: " + err.Error())
			}
			return
		}
		s.mu.Lock()
		if s.conns != nil {
			s.conns[t] = struct{}{}
		}
		s.mu.Unlock()
		s.serving.Add(1)
		go func(t Transport) {
			defer s.serving.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, t)
				s.mu.Unlock()
			}()
			Serve(ctx, t, s.dispatcher)
		}(t)
	}
}

// Down closes every acceptor, cancels in-flight serve loops at their next
// read, and waits for them to drain. Invocations already running are
// allowed to complete; the server never kills a long-running method call.
func (s *Server) Down() {
	s.mu.Lock()
	if !s.up {
		s.mu.Unlock()
		return
	}
	s.up = false
	cancel := s.cancel
	conns := make([]Transport, 0, len(s.conns))
	for t := range s.conns {
		conns = append(conns, t)
	}
	s.conns = nil
	s.mu.Unlock()

	for _, a := range s.acceptors {
		if err := a.Close(); err != nil {
			log.Debug("closing acceptor: " + err.Error())
		}
	}
	// unblock serve loops parked in ReadLine on idle keep-alive connections.
	for _, t := range conns {
		_ = t.Close()
	}
	cancel()
	s.serving.Wait()
}
