package routing

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"

	nmea "github.com/sterwen-nav/nmea-router"
)

// TCPCoupler is a bidirectional Transport over a TCP connection carrying line-delimited messages in
// codec's wire format (canboat/MXPGN/PDGY); new, grounded on spec.md §4.G's "TCP reader" variant and the
// teacher's io.ReadWriteCloser-based device shape (socketcan/device.go, canboat/device.go).
type TCPCoupler struct {
	addr  string
	codec LineCodec

	conn    net.Conn
	scanner *bufio.Scanner
}

func NewTCPCoupler(addr string, codec LineCodec) *TCPCoupler {
	return &TCPCoupler{addr: addr, codec: codec}
}

func (c *TCPCoupler) Open(ctx context.Context) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	c.conn = conn
	c.scanner = bufio.NewScanner(conn)
	return nil
}

func (c *TCPCoupler) Read(ctx context.Context) (nmea.RawMessage, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nmea.RawMessage{}, err
		}
		return nmea.RawMessage{}, fmt.Errorf("tcp: connection closed")
	}
	line := strings.TrimSpace(c.scanner.Text())
	if line == "" {
		return nmea.RawMessage{}, ErrReadTimeout
	}
	return c.codec.Decode(line)
}

func (c *TCPCoupler) Send(ctx context.Context, msg nmea.RawMessage) error {
	line, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	_, err = c.conn.Write([]byte(line))
	return err
}

func (c *TCPCoupler) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// TCPServerCoupler listens for inbound connections (e.g. a Shipmodul Miniplex dialing in); each Accept
// call returns one client connection as a TCPCoupler. It starts no deliverer goroutines itself, and
// maxConnections (default 16) is stored but does not limit how many connections Accept returns.
type TCPServerCoupler struct {
	addr           string
	codec          LineCodec
	maxConnections int

	listener net.Listener
}

func NewTCPServerCoupler(addr string, codec LineCodec, maxConnections int) *TCPServerCoupler {
	if maxConnections <= 0 {
		maxConnections = 16
	}
	return &TCPServerCoupler{addr: addr, codec: codec, maxConnections: maxConnections}
}

func (s *TCPServerCoupler) Open(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l
	return nil
}

func (s *TCPServerCoupler) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Accept blocks for one incoming connection and wraps it as a TCPCoupler-compatible Transport.
func (s *TCPServerCoupler) Accept() (*TCPCoupler, error) {
	conn, err := s.listener.Accept()
	if err != nil {
		return nil, err
	}
	return &TCPCoupler{conn: conn, codec: s.codec, scanner: bufio.NewScanner(conn)}, nil
}
