package routing

import (
	"context"
	"errors"
	"net"

	nmea "github.com/sterwen-nav/nmea-router"
)

// ErrNoPeer is returned by UDPCoupler.Send before any datagram has been received to learn a peer address.
var ErrNoPeer = errors.New("udp: no peer address known yet")

// UDPCoupler is a Transport over a UDP socket carrying one encoded line per datagram, per SPEC_FULL.md's
// routing/udp.go note; it uses net.ListenUDP in both directions. When remoteAddr is empty the coupler listens and
// learns its peer from the first received datagram, matching broadcast NMEA0183-over-UDP sources.
type UDPCoupler struct {
	localAddr  string
	remoteAddr string
	codec      LineCodec

	conn *net.UDPConn
	peer *net.UDPAddr
	buf  []byte
}

func NewUDPCoupler(localAddr, remoteAddr string, codec LineCodec) *UDPCoupler {
	return &UDPCoupler{localAddr: localAddr, remoteAddr: remoteAddr, codec: codec, buf: make([]byte, 2048)}
}

func (c *UDPCoupler) Open(ctx context.Context) error {
	local, err := net.ResolveUDPAddr("udp", c.localAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return err
	}
	c.conn = conn

	if c.remoteAddr != "" {
		peer, err := net.ResolveUDPAddr("udp", c.remoteAddr)
		if err != nil {
			return err
		}
		c.peer = peer
	}
	return nil
}

func (c *UDPCoupler) Read(ctx context.Context) (nmea.RawMessage, error) {
	n, addr, err := c.conn.ReadFromUDP(c.buf)
	if err != nil {
		return nmea.RawMessage{}, err
	}
	if c.peer == nil {
		c.peer = addr
	}
	line := string(c.buf[:n])
	if line == "" {
		return nmea.RawMessage{}, ErrReadTimeout
	}
	return c.codec.Decode(line)
}

func (c *UDPCoupler) Send(ctx context.Context, msg nmea.RawMessage) error {
	line, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	if c.peer == nil {
		return ErrNoPeer
	}
	_, err = c.conn.WriteToUDP([]byte(line), c.peer)
	return err
}

func (c *UDPCoupler) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
