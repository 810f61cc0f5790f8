package routing

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/sterwen-nav/nmea-router"
)

// PDGYCodec wraps NMEA2000 frames in the Digital Yacht `!PDGY,...` NMEA0183 encapsulation, per spec.md
// §6: `!PDGY,<pgn>,<prio>,<sa>,<da>,<timer>,<base64-payload>` for receive; encode emits the same shape
// (the shorter transmit form omits sa/timer, which this router always has, so Encode uses the full form).
// Grounded on canboat/inputoutput.go's comma-joined encode/decode style.
type PDGYCodec struct{}

func (PDGYCodec) Encode(msg nmea.RawMessage) (string, error) {
	payload := base64.StdEncoding.EncodeToString(msg.Data)
	body := fmt.Sprintf("PDGY,%d,%d,%d,%d,0,%s", msg.Header.PGN, msg.Header.Priority, msg.Header.Source, msg.Header.Destination, payload)
	return fmt.Sprintf("!%s*%02X\r\n", body, nmea.Checksum(body)), nil
}

func (PDGYCodec) Decode(line string) (nmea.RawMessage, error) {
	s, err := nmea.ParseSentence(line)
	if err != nil {
		return nmea.RawMessage{}, err
	}
	if s.Formatter != "PDGY" || len(s.Fields) < 5 {
		return nmea.RawMessage{}, fmt.Errorf("pdgy: not a PDGY sentence: %q", line)
	}

	pgn, err := strconv.ParseUint(s.Fields[0], 10, 32)
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("pdgy: invalid pgn: %w", err)
	}
	prio, err := strconv.ParseUint(s.Fields[1], 10, 8)
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("pdgy: invalid priority: %w", err)
	}
	sa, err := strconv.ParseUint(s.Fields[2], 10, 8)
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("pdgy: invalid source: %w", err)
	}
	da, err := strconv.ParseUint(s.Fields[3], 10, 8)
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("pdgy: invalid destination: %w", err)
	}

	payloadField := s.Fields[len(s.Fields)-1]
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payloadField))
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("pdgy: invalid base64 payload: %w", err)
	}

	return nmea.RawMessage{
		Header: nmea.CanBusHeader{PGN: uint32(pgn), Priority: uint8(prio), Source: uint8(sa), Destination: uint8(da)},
		Data:   data,
	}, nil
}
