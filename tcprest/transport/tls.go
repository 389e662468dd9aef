package transport

import (
	"crypto/tls"
	"net"
)

// ListenTLS binds a TLS-terminating TCP listener on addr. The engine never
// sees the handshake; frames arrive through the same StreamTransport as
// plaintext connections, which is what keeps TLS transparent to the
// dispatcher.
func ListenTLS(addr string, cfg *tls.Config) (net.Listener, error) {
	return tls.Listen("tcp", addr, cfg)
}

// DialTLS connects to a TLS-terminated server.
func DialTLS(addr string, cfg *tls.Config) (net.Conn, error) {
	return tls.Dial("tcp", addr, cfg)
}
