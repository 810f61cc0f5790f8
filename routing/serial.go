package routing

import (
	"time"

	"github.com/tarm/serial"
)

// OpenSerialPort opens a serial device at the given baud rate, grounded on cmd/n2kreader/main.go's
// serial.OpenPort(&serial.Config{...}) usage. readTimeout must not be smaller than 100ms: the device's own
// bus-silence timeout is tracked separately by the caller (ActisenseCoupler's device, CANInterface).
func OpenSerialPort(name string, baud int, readTimeout time.Duration) (*serial.Port, error) {
	if readTimeout < 100*time.Millisecond {
		readTimeout = 100 * time.Millisecond
	}
	return serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
		Size:        8,
	})
}
