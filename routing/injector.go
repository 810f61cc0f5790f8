package routing

import (
	"context"

	nmea "github.com/sterwen-nav/nmea-router"
)

// Injector is a Publisher that re-injects delivered messages into another coupler's Transport, for
// couplers that bridge two buses (e.g. forwarding NMEA0183 traffic onto the CAN bus via a protocol
// translator application rather than a router-level subscription).
type Injector struct {
	id     string
	target Transport
}

func NewInjector(id string, target Transport) *Injector {
	return &Injector{id: id, target: target}
}

func (i *Injector) ID() string { return i.id }

func (i *Injector) Publish(msg nmea.RawMessage) error {
	return i.target.Send(context.Background(), msg)
}
