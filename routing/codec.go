package routing

import (
	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/sterwen-nav/nmea-router/canboat"
)

// LineCodec converts between a wire text line and a RawMessage, letting tcp.go/udp.go/serial.go share one
// read/write loop across the canboat, MXPGN and PDGY line formats spec.md §6 describes.
type LineCodec interface {
	Encode(msg nmea.RawMessage) (string, error)
	Decode(line string) (nmea.RawMessage, error)
}

// CanboatCodec adapts the teacher's canboat.MarshalRawMessage/UnmarshalString (kept, used directly) to
// LineCodec.
type CanboatCodec struct{}

func (CanboatCodec) Encode(msg nmea.RawMessage) (string, error) {
	b, err := canboat.MarshalRawMessage(msg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (CanboatCodec) Decode(line string) (nmea.RawMessage, error) {
	return canboat.UnmarshalString(line)
}
