package routing

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	nmea "github.com/sterwen-nav/nmea-router"
)

// MXPGNCodec wraps NMEA2000 frames in the Shipmodul Miniplex `$MXPGN,...` NMEA0183 encapsulation, per
// spec.md §6: `$MXPGN,<pgn-hex-6>,<attr-hex-4>,<data-hex>*CS` where attr packs priority (bits 12-14),
// data length (bits 8-11) and destination address (bits 0-7), high bit set; data bytes are reversed.
// Grounded on canboat/inputoutput.go's comma-joined hex-encode/decode style.
type MXPGNCodec struct{}

func (MXPGNCodec) Encode(msg nmea.RawMessage) (string, error) {
	attr := uint16(0x8000) | uint16(msg.Header.Priority&0x7)<<12 | uint16(len(msg.Data)&0xF)<<8 | uint16(msg.Header.Destination)

	reversed := make([]byte, len(msg.Data))
	for i, b := range msg.Data {
		reversed[len(msg.Data)-1-i] = b
	}

	body := fmt.Sprintf("MXPGN,%06X,%04X,%s", msg.Header.PGN, attr, strings.ToUpper(hex.EncodeToString(reversed)))
	return fmt.Sprintf("$%s*%02X\r\n", body, nmea.Checksum(body)), nil
}

func (MXPGNCodec) Decode(line string) (nmea.RawMessage, error) {
	s, err := nmea.ParseSentence(line)
	if err != nil {
		return nmea.RawMessage{}, err
	}
	if s.Talker+s.Formatter != "MXPGN" || len(s.Fields) < 3 {
		return nmea.RawMessage{}, fmt.Errorf("mxpgn: not an MXPGN sentence: %q", line)
	}

	pgn, err := strconv.ParseUint(s.Fields[0], 16, 32)
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("mxpgn: invalid pgn: %w", err)
	}
	attr, err := strconv.ParseUint(s.Fields[1], 16, 16)
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("mxpgn: invalid attr: %w", err)
	}
	data, err := hex.DecodeString(s.Fields[2])
	if err != nil {
		return nmea.RawMessage{}, fmt.Errorf("mxpgn: invalid data: %w", err)
	}
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}

	return nmea.RawMessage{
		Header: nmea.CanBusHeader{
			PGN:         uint32(pgn),
			Priority:    uint8((attr >> 12) & 0x7),
			Destination: uint8(attr),
		},
		Data: data,
	}, nil
}
