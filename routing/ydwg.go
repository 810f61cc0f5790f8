package routing

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	nmea "github.com/sterwen-nav/nmea-router"
)

// YDWGCoupler is a read-only Transport over a Yacht Devices YDWG log stream: space-separated lines
// `<timestamp> R <id-hex> <byte-hex> <byte-hex> ...` where R marks a receive direction, per spec.md §6.
// Grounded on canboat/device.go's bufio.Scanner line-reader shape.
type YDWGCoupler struct {
	reader  io.Reader
	scanner *bufio.Scanner
}

func NewYDWGCoupler(reader io.Reader) *YDWGCoupler {
	return &YDWGCoupler{reader: reader, scanner: bufio.NewScanner(reader)}
}

func (c *YDWGCoupler) Open(ctx context.Context) error { return nil }

func (c *YDWGCoupler) Read(ctx context.Context) (nmea.RawMessage, error) {
	for c.scanner.Scan() {
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}
		msg, ok, err := parseYDWGLine(line)
		if err != nil {
			continue // malformed line: drop, per spec.md §7 "Malformed frame"
		}
		if !ok {
			continue // a transmit (T) line, not of interest to a reader
		}
		return msg, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nmea.RawMessage{}, err
	}
	return nmea.RawMessage{}, io.EOF
}

func (c *YDWGCoupler) Send(ctx context.Context, msg nmea.RawMessage) error {
	return fmt.Errorf("ydwg: coupler is read-only")
}

func (c *YDWGCoupler) Close() error {
	if closer, ok := c.reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// parseYDWGLine parses one `<timestamp> R <id-hex> <byte-hex>...` line; ok is false for non-receive
// (e.g. transmit "T") lines, which the reader should skip rather than fail on.
func parseYDWGLine(line string) (nmea.RawMessage, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nmea.RawMessage{}, false, fmt.Errorf("ydwg: too few fields")
	}
	if fields[1] != "R" {
		return nmea.RawMessage{}, false, nil
	}

	canID, err := strconv.ParseUint(fields[2], 16, 32)
	if err != nil {
		return nmea.RawMessage{}, false, fmt.Errorf("ydwg: invalid CAN id: %w", err)
	}

	data := make([]byte, 0, len(fields)-3)
	for _, byteHex := range fields[3:] {
		b, err := hex.DecodeString(byteHex)
		if err != nil || len(b) != 1 {
			return nmea.RawMessage{}, false, fmt.Errorf("ydwg: invalid data byte %q", byteHex)
		}
		data = append(data, b[0])
	}

	return nmea.RawMessage{
		Header: nmea.ParseCANID(uint32(canID)),
		Data:   data,
	}, true, nil
}
