package tcprest

import "context"

// Transport is the uniform contract the dispatcher consumes:
// one full request frame in, one reply frame out. Concrete transports
// (stream socket, datagram socket, in-process pipe) live outside this
// package; this engine only depends on the interface.
type Transport interface {
	// ReadLine blocks for one complete request frame with no trailing
	// newline. A returned error of io.EOF (or equivalent "connection gone"
	// signal) tells the caller to stop serving this transport without a
	// reply attempt.
	ReadLine(ctx context.Context) (string, error)
	// WriteLine sends one reply frame; the implementation is responsible
	// for the trailing "\n" stream transports need to delimit frames.
	WriteLine(ctx context.Context, line string) error
	// Close releases any resources the transport holds.
	Close() error
}

// Serve drives one Transport to completion: it reads lines until ReadLine
// errors, dispatches each through d, and writes the reply. It abandons the
// reply silently if the transport reports the peer is gone rather than
// surfacing a write error up the stack.
func Serve(ctx context.Context, t Transport, d *Dispatcher) {
	defer t.Close()
	for {
		line, err := t.ReadLine(ctx)
		if err != nil {
			return
		}
		result := d.HandleLine(line)
		if result.Reply != "" {
			if werr := t.WriteLine(ctx, result.Reply); werr != nil {
				return
			}
		}
		if result.CloseAfter {
			return
		}
	}
}
