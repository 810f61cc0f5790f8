package routing

import (
	"context"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/sterwen-nav/nmea-router/controller"
)

// CANCoupler adapts a controller.CANInterface (already bus-ready and driven by a Controller) to the
// Transport interface, for direct CAN ingress couplers that want filter/publisher fan-out independent of
// the Active Controller's own application routing.
type CANCoupler struct {
	can *controller.CANInterface

	messages <-chan nmea.RawMessage
	errs     <-chan error
}

func NewCANCoupler(can *controller.CANInterface) *CANCoupler {
	return &CANCoupler{can: can}
}

func (c *CANCoupler) Open(ctx context.Context) error {
	c.messages, c.errs = c.can.Run(ctx)
	return nil
}

func (c *CANCoupler) Read(ctx context.Context) (nmea.RawMessage, error) {
	select {
	case msg, ok := <-c.messages:
		if !ok {
			return nmea.RawMessage{}, context.Canceled
		}
		return msg, nil
	case err, ok := <-c.errs:
		if !ok || err == nil {
			return nmea.RawMessage{}, ErrReadTimeout
		}
		return nmea.RawMessage{}, err
	case <-ctx.Done():
		return nmea.RawMessage{}, ctx.Err()
	}
}

func (c *CANCoupler) Send(ctx context.Context, msg nmea.RawMessage) error {
	return c.can.Send(msg, false)
}

func (c *CANCoupler) Close() error { return c.can.Close() }
