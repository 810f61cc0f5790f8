package controller

import (
	"context"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/sterwen-nav/nmea-router/internal/addressmapper"
)

// RemoteDevice is a bus node the Active Controller has observed but does not own: its address, NAME and
// whatever product/configuration info has been collected so far. Thin view over addressmapper.Node, kept
// separate so controller.go never depends on addressmapper's internal busSlot bookkeeping.
type RemoteDevice struct {
	Address           uint8
	Name              addressmapper.NodeName
	ProductInfo       addressmapper.ProductInfo
	ConfigurationInfo addressmapper.ConfigurationInfo
}

// RemoteDeviceTable tracks every node seen on the bus other than our own local Applications, adapted from
// the teacher's internal/addressmapper.AddressMapper (an observer-only component) into the Active
// Controller's source of "addresses currently in use" for iso.AddressAllocator.NextAddress.
type RemoteDeviceTable struct {
	mapper *addressmapper.AddressMapper
}

// NewRemoteDeviceTable wraps an AddressMapper writing its ISO-request traffic through sender.
func NewRemoteDeviceTable(sender nmea.RawMessageWriter) *RemoteDeviceTable {
	return &RemoteDeviceTable{mapper: addressmapper.NewAddressMapper(sender)}
}

// Run drives the underlying AddressMapper's periodic request-writer loop until ctx is cancelled.
func (t *RemoteDeviceTable) Run(ctx context.Context) error {
	return t.mapper.Run(ctx)
}

// Observe feeds a received message into the table; it returns true if the message was ISO-protocol
// address-claim/product-info/configuration-info/PGN-list traffic this table consumes.
func (t *RemoteDeviceTable) Observe(msg nmea.RawMessage) (bool, error) {
	return t.mapper.Process(msg)
}

// Devices returns every remote device currently known.
func (t *RemoteDeviceTable) Devices() []RemoteDevice {
	nodes := t.mapper.Nodes()
	out := make([]RemoteDevice, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, RemoteDevice{
			Address:           n.Source,
			Name:              n.Name,
			ProductInfo:       n.ProductInfo,
			ConfigurationInfo: n.ConfigurationInfo,
		})
	}
	return out
}

// AddressesInUse returns the set of bus addresses currently claimed by a remote device, the shape
// iso.AddressAllocator.NextAddress needs to avoid handing out a colliding address.
func (t *RemoteDeviceTable) AddressesInUse() map[uint8]bool {
	inUse := make(map[uint8]bool)
	for addr := range t.mapper.NodesInUseBySource() {
		inUse[addr] = true
	}
	return inUse
}

// BroadcastIsoAddressClaimRequest asks every node on the bus to (re-)announce its address claim, used at
// startup so the table converges quickly instead of waiting for organic heartbeat/claim traffic.
func (t *RemoteDeviceTable) BroadcastIsoAddressClaimRequest() {
	t.mapper.BroadcastIsoAddressClaimRequest()
}
