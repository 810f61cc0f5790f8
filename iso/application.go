package iso

import (
	"context"
	"sync"
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/sterwen-nav/nmea-router/internal/addressmapper"
)

// State is one of the Controller Application's address-claim lifecycle states.
type State int

const (
	StateWaitForBus State = iota
	StateAddressClaim
	StateActive
	StateStopInProgress
)

func (s State) String() string {
	switch s {
	case StateWaitForBus:
		return "WaitForBus"
	case StateAddressClaim:
		return "AddressClaim"
	case StateActive:
		return "Active"
	case StateStopInProgress:
		return "StopInProgress"
	default:
		return "Unknown"
	}
}

// Sender is the subset of controller.CANInterface an Application needs: send a message, optionally
// bypassing the address-claimed gate (force=true), and learn when the bus is ready to transmit on.
type Sender interface {
	Send(msg nmea.RawMessage, force bool) error
	WaitForBusReady(ctx context.Context) error
}

// AddressAllocator hands out a replacement address when a claim conflict is lost, keyed against the
// addresses the Active Controller currently knows to be in use.
type AddressAllocator interface {
	NextAddress(inUse map[uint8]bool) (uint8, error)
}

// addressClaimDelay is the Python original's `threading.Timer(0.4, ...)`: how long an Application waits
// after broadcasting its address claim before assuming no higher-priority conflict will arrive.
const addressClaimDelay = 400 * time.Millisecond

const defaultHeartbeatInterval = 60 * time.Second

// Application is a Controller Application (CA): one virtual NMEA2000 device, grounded on the Python
// original's NMEA2000Application. Unlike the teacher (which only observes the bus, see
// internal/addressmapper.AddressMapper), an Application claims a bus address and answers ISO Requests,
// Group Functions, and sends its own heartbeat.
type Application struct {
	sender    Sender
	allocator AddressAllocator

	mu      sync.Mutex
	address uint8
	name    Name
	state   State

	productInfo   addressmapper.ProductInfo
	configInfo    addressmapper.ConfigurationInfo
	heartbeatRate time.Duration
	sequence      uint8

	inUse func() map[uint8]bool

	now func() time.Time
}

// NewApplication constructs an Application with the given initial address and NAME; address claim does
// not happen until Run is called.
func NewApplication(sender Sender, allocator AddressAllocator, address uint8, name Name, productInfo addressmapper.ProductInfo, configInfo addressmapper.ConfigurationInfo, inUse func() map[uint8]bool) *Application {
	return &Application{
		sender:        sender,
		allocator:     allocator,
		address:       address,
		name:          name,
		state:         StateWaitForBus,
		productInfo:   productInfo,
		configInfo:    configInfo,
		heartbeatRate: defaultHeartbeatInterval,
		inUse:         inUse,
		now:           time.Now,
	}
}

func (a *Application) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Application) Address() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.address
}

// Run drives the WaitForBus -> AddressClaim -> Active lifecycle and then the steady-state heartbeat and
// incoming-message processing loop until ctx is cancelled, per the Python original's
// wait_for_bus_ready/send_address_claim/address_claim_delay sequence, re-expressed as one goroutine
// driving an explicit state struct (REDESIGN: no per-thread worker objects).
func (a *Application) Run(ctx context.Context, incoming <-chan nmea.RawMessage) error {
	if err := a.sender.WaitForBusReady(ctx); err != nil {
		return err
	}

	if err := a.claimAddress(ctx, incoming); err != nil {
		return err
	}

	heartbeat := time.NewTicker(a.heartbeatRate)
	defer heartbeat.Stop()

	a.sendHeartbeat()
	for {
		select {
		case <-ctx.Done():
			a.mu.Lock()
			a.state = StateStopInProgress
			a.mu.Unlock()
			return ctx.Err()
		case <-heartbeat.C:
			a.sendHeartbeat()
		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			if err := a.handle(msg); err != nil {
				return err
			}
		}
	}
}

// claimAddress broadcasts an Address Claim and waits addressClaimDelay for a higher-priority conflict;
// any conflicting claim for our address seen in that window is resolved immediately by name comparison.
func (a *Application) claimAddress(ctx context.Context, incoming <-chan nmea.RawMessage) error {
	a.mu.Lock()
	a.state = StateAddressClaim
	a.mu.Unlock()

	if err := a.sendAddressClaim(); err != nil {
		return err
	}

	timer := time.NewTimer(addressClaimDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			a.mu.Lock()
			a.state = StateStopInProgress
			a.mu.Unlock()
			return ctx.Err()
		case <-timer.C:
			a.mu.Lock()
			a.state = StateActive
			a.mu.Unlock()
			return nil
		case msg := <-incoming:
			if msg.Header.PGN == uint32(nmea.PGNISOAddressClaim) && msg.Header.Source == a.Address() {
				if err := a.resolveConflict(msg); err != nil {
					return err
				}
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(addressClaimDelay)
			}
		}
	}
}

// resolveConflict compares the conflicting claim's NAME to ours: we keep our address (and re-assert the
// claim) if our NAME is lower, otherwise we request a new address from the pool and re-claim with it.
func (a *Application) resolveConflict(msg nmea.RawMessage) error {
	other, err := ParseName(msg.Data)
	if err != nil {
		return err
	}

	a.mu.Lock()
	ourName := a.name
	a.mu.Unlock()

	if ourName.Less(other) {
		return a.sendAddressClaim()
	}

	newAddress, err := a.allocator.NextAddress(a.inUse())
	if err != nil {
		// Python original: "Cannot obtain a CAN address => Going off line" — announce cannot-claim and stop.
		// A claim sent from the null address (254) is the cannot-claim announcement.
		a.mu.Lock()
		a.address = nmea.AddressNull
		a.mu.Unlock()
		_ = a.sendAddressClaim()
		return ErrAddressClaimFailed
	}
	a.mu.Lock()
	a.address = newAddress
	a.mu.Unlock()
	return a.sendAddressClaim()
}

func (a *Application) sendAddressClaim() error {
	a.mu.Lock()
	address, name := a.address, a.name
	a.mu.Unlock()
	return a.sender.Send(nmea.RawMessage{
		Time: a.now(),
		Header: nmea.CanBusHeader{
			PGN: uint32(nmea.PGNISOAddressClaim), Priority: 6, Source: address, Destination: nmea.AddressGlobal,
		},
		Data: name.Bytes(),
	}, true)
}

func (a *Application) sendHeartbeat() {
	a.mu.Lock()
	address := a.address
	seq := a.sequence
	a.sequence++
	if a.sequence > 253 {
		a.sequence = 0
	}
	a.mu.Unlock()

	payload := make([]byte, 8)
	intervalMs := uint32(a.heartbeatRate / time.Millisecond)
	payload[0] = byte(intervalMs)
	payload[1] = byte(intervalMs >> 8)
	payload[2] = byte(intervalMs >> 16)
	payload[3] = byte(intervalMs >> 24)
	payload[4] = seq
	for i := 5; i < 8; i++ {
		payload[i] = 0xFF
	}

	_ = a.sender.Send(nmea.RawMessage{
		Time: a.now(),
		Header: nmea.CanBusHeader{
			PGN: 126993, Priority: 7, Source: address, Destination: nmea.AddressGlobal,
		},
		Data: payload,
	}, false)
}

func (a *Application) handle(msg nmea.RawMessage) error {
	address := a.Address()
	if msg.Header.Destination != address && msg.Header.Destination != nmea.AddressGlobal {
		return nil
	}
	switch nmea.PGN(msg.Header.PGN) {
	case nmea.PGNISORequest:
		return a.handleISORequest(msg)
	case nmea.PGNPGNList:
		return nil
	default:
		if msg.Header.PGN == 126208 {
			return a.handleGroupFunction(msg)
		}
	}
	return nil
}

func (a *Application) handleISORequest(msg nmea.RawMessage) error {
	if len(msg.Data) < 3 {
		return nil
	}
	requestedPGN := uint32(msg.Data[0]) | uint32(msg.Data[1])<<8 | uint32(msg.Data[2])<<16
	switch nmea.PGN(requestedPGN) {
	case nmea.PGNISOAddressClaim:
		return a.sendAddressClaim()
	case nmea.PGNProductInfo:
		return a.sendProductInfo()
	case nmea.PGNConfigurationInformation:
		return a.sendConfigurationInfo()
	}
	return nil
}

func (a *Application) sendProductInfo() error {
	address := a.Address()
	p := a.productInfo
	data := make(nmea.RawData, 134)
	writeUint16(data, 0, p.NMEA2000Version)
	writeUint16(data, 2, p.ProductCode)
	writeFixedASCII(data, 4, 32, p.ModelID)
	writeFixedASCII(data, 36, 32, p.SoftwareVersionCode)
	writeFixedASCII(data, 68, 32, p.ModelVersion)
	writeFixedASCII(data, 100, 32, p.ModelSerialCode)
	data[132] = p.CertificationLevel
	data[133] = p.LoadEquivalency

	return a.sender.Send(nmea.RawMessage{
		Time: a.now(),
		Header: nmea.CanBusHeader{
			PGN: uint32(nmea.PGNProductInfo), Priority: 6, Source: address, Destination: nmea.AddressGlobal,
		},
		Data: []byte(data),
	}, true)
}

func (a *Application) sendConfigurationInfo() error {
	address := a.Address()
	c := a.configInfo
	var data []byte
	data = append(data, lauEncode(c.InstallationDesc1)...)
	data = append(data, lauEncode(c.InstallationDesc2)...)
	data = append(data, lauEncode(c.ManufacturerInfo)...)

	return a.sender.Send(nmea.RawMessage{
		Time: a.now(),
		Header: nmea.CanBusHeader{
			PGN: uint32(nmea.PGNConfigurationInformation), Priority: 6, Source: address, Destination: nmea.AddressGlobal,
		},
		Data: data,
	}, true)
}

func writeUint16(data nmea.RawData, byteOffset int, v uint16) {
	data[byteOffset] = byte(v)
	data[byteOffset+1] = byte(v >> 8)
}

func writeFixedASCII(data nmea.RawData, byteOffset int, length int, s string) {
	for i := 0; i < length; i++ {
		if i < len(s) {
			data[byteOffset+i] = s[i]
		} else {
			data[byteOffset+i] = '@'
		}
	}
}

// lauEncode writes a variable-length ASCII field in the length+encoding-byte prefixed shape
// DecodeStringLAU reads: total length byte, encoding byte (1 = ASCII/UTF-8), then the string bytes.
func lauEncode(s string) []byte {
	out := make([]byte, len(s)+2)
	out[0] = byte(len(s) + 2)
	out[1] = 1
	copy(out[2:], s)
	return out
}
