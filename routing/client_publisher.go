package routing

import (
	"net"

	nmea "github.com/sterwen-nav/nmea-router"
)

// EncodingMode selects how a ClientPublisher re-serializes a message before writing it to its TCP client,
// grounded on the original's NMEAPublisher / NMEA2000DYPublisher / NMEA2000STPublisher split.
type EncodingMode int

const (
	// Transparent writes the message's payload bytes (msg.Data) unchanged, with no header or line framing.
	Transparent EncodingMode = iota
	// DYFormat re-encodes as a Digital Yacht !PDGY sentence.
	DYFormat
	// STFormat re-encodes via the canboat text codec.
	STFormat
)

// ClientPublisher delivers messages to one accepted TCP client connection (e.g. a Shipmodul Miniplex or
// chartplotter dialed into a TCPServerCoupler), re-encoding per mode.
type ClientPublisher struct {
	id    string
	conn  net.Conn
	mode  EncodingMode
	codec LineCodec
}

func NewClientPublisher(id string, conn net.Conn, mode EncodingMode) *ClientPublisher {
	p := &ClientPublisher{id: id, conn: conn, mode: mode}
	switch mode {
	case DYFormat:
		p.codec = PDGYCodec{}
	case STFormat:
		p.codec = CanboatCodec{}
	}
	return p
}

func (p *ClientPublisher) ID() string { return p.id }

func (p *ClientPublisher) Publish(msg nmea.RawMessage) error {
	if p.mode == Transparent || p.codec == nil {
		_, err := p.conn.Write(msg.Data)
		return err
	}
	line, err := p.codec.Encode(msg)
	if err != nil {
		return err
	}
	_, err = p.conn.Write([]byte(line))
	return err
}
