package transport

import (
	"context"
	"net"
)

// DefaultMaxDatagramBytes is the default UDP frame size cap.
const DefaultMaxDatagramBytes = 1472

// DatagramTransport enforces "one datagram = one frame": ReadLine returns
// exactly the bytes of one received packet (minus trailing CRLF), WriteLine
// sends the reply back to whichever address last read from, and oversized
// inbound packets are dropped rather than split across frames.
type DatagramTransport struct {
	conn       *net.UDPConn
	maxBytes   int
	lastSender *net.UDPAddr
}

// NewDatagramTransport wraps an already-bound *net.UDPConn. maxBytes <= 0
// uses DefaultMaxDatagramBytes.
func NewDatagramTransport(conn *net.UDPConn, maxBytes int) *DatagramTransport {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDatagramBytes
	}
	return &DatagramTransport{conn: conn, maxBytes: maxBytes}
}

func (d *DatagramTransport) ReadLine(ctx context.Context) (string, error) {
	buf := make([]byte, d.maxBytes+1)
	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return "", err
		}
		if n > d.maxBytes {
			// oversized datagram: drop silently and wait for the next one.
			continue
		}
		d.lastSender = addr
		return trimCRLF(string(buf[:n])), nil
	}
}

func (d *DatagramTransport) WriteLine(ctx context.Context, line string) error {
	if d.lastSender == nil {
		return nil
	}
	_, err := d.conn.WriteToUDP([]byte(line), d.lastSender)
	return err
}

func (d *DatagramTransport) Close() error {
	return d.conn.Close()
}

// ListenUDP binds a UDP socket on addr ("host:port").
func ListenUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenUDP("udp", udpAddr)
}
