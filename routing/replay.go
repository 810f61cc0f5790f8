package routing

import (
	"context"
	"fmt"
	"io"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/sterwen-nav/nmea-router/canboat"
)

// ReplayCoupler is a read-only Transport over a canboat-format log file, wrapping the teacher's
// canboat.NewCanBoatReader/UnmarshalString (kept, used directly).
type ReplayCoupler struct {
	device *canboat.Device
}

func NewReplayCoupler(reader io.Reader) *ReplayCoupler {
	return &ReplayCoupler{device: canboat.NewCanBoatReader(reader)}
}

func (c *ReplayCoupler) Open(ctx context.Context) error { return c.device.Initialize() }

func (c *ReplayCoupler) Read(ctx context.Context) (nmea.RawMessage, error) {
	return c.device.ReadRawMessage(ctx)
}

func (c *ReplayCoupler) Send(ctx context.Context, msg nmea.RawMessage) error {
	return fmt.Errorf("replay: coupler is read-only")
}

func (c *ReplayCoupler) Close() error { return c.device.Close() }
