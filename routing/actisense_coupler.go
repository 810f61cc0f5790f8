package routing

import (
	"context"
	"errors"
	"io"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/sterwen-nav/nmea-router/actisense"
)

// actisenseDevice is satisfied by actisense.NGT1, actisense.N2kASCIIDevice and actisense.RawASCIIDevice.
type actisenseDevice interface {
	Initialize() error
	ReadRawMessage(ctx context.Context) (nmea.RawMessage, error)
	Close() error
}

// ActisenseCoupler adapts an Actisense USB gateway device (NGT-1, W2K-1 in N2K ASCII or RAW ASCII mode) to
// the Transport interface; new, wraps the teacher's actisense package directly rather than duplicating its
// framing/escape-sequence parsing.
type ActisenseCoupler struct {
	device actisenseDevice
	writer func(nmea.RawMessage) error
}

// NewNGT1Coupler wraps an Actisense NGT-1 device. The NGT-1 device does not expose a send path in this
// package, so the coupler is read-only.
func NewNGT1Coupler(port io.ReadWriter) *ActisenseCoupler {
	return &ActisenseCoupler{device: actisense.NewNGT1Device(port)}
}

// NewN2kASCIICoupler wraps an Actisense W2K-1 device in N2K ASCII mode. Read-only: the teacher's
// N2kASCIIDevice.Write is not implemented.
func NewN2kASCIICoupler(port io.ReadWriter, config actisense.Config) *ActisenseCoupler {
	return &ActisenseCoupler{device: actisense.NewN2kASCIIDevice(port, config)}
}

// NewRawASCIICoupler wraps an Actisense W2K-1 device in RAW ASCII mode, which supports sending.
func NewRawASCIICoupler(port io.ReadWriter, config actisense.Config) *ActisenseCoupler {
	d := actisense.NewRawASCIIDevice(port, config)
	return &ActisenseCoupler{
		device: d,
		writer: func(msg nmea.RawMessage) error { return d.WriteRawMessage(context.Background(), msg) },
	}
}

func (c *ActisenseCoupler) Open(ctx context.Context) error { return c.device.Initialize() }

func (c *ActisenseCoupler) Read(ctx context.Context) (nmea.RawMessage, error) {
	return c.device.ReadRawMessage(ctx)
}

func (c *ActisenseCoupler) Send(ctx context.Context, msg nmea.RawMessage) error {
	if c.writer == nil {
		return errors.New("actisense: coupler is read-only")
	}
	return c.writer(msg)
}

func (c *ActisenseCoupler) Close() error { return c.device.Close() }
