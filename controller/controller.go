package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
)

// LocalApplication is the subset of iso.Application the Active Controller needs to own and dispatch to.
type LocalApplication interface {
	Address() uint8
	Run(ctx context.Context, incoming <-chan nmea.RawMessage) error
}

// TimerSubscriber is implemented by an application that wants a once-per-second tick, grounded on the
// Python original's timer_subscribe/_timer_lapse mechanism.
type TimerSubscriber interface {
	WakeUp()
}

type localApp struct {
	app      LocalApplication
	incoming chan nmea.RawMessage
}

// canWriter adapts CANInterface.Send to nmea.RawMessageWriter so it can back a RemoteDeviceTable.
type canWriter struct{ can *CANInterface }

func (w canWriter) Write(msg nmea.RawMessage) error { return w.can.Send(msg, false) }
func (w canWriter) Close() error                    { return nil }

// Controller is the Active Controller: it owns the CAN bus interface, every local Application hosted in
// this process, and the table of remote devices observed on the bus. Grounded on the Python original's
// NMEA2KActiveController (nmea2k_active_controller.py): local app table keyed by address, PGN dispatch
// vector, catch-all list, once-per-second timer, deferred address-change application.
type Controller struct {
	can    *CANInterface
	remote *RemoteDeviceTable

	mu        sync.Mutex
	apps      map[uint8]*localApp
	pgnVector map[uint32]uint8 // PGN -> address of the subscribed application
	catchAll  []uint8          // addresses of applications that receive every unrouted data message
	timers    []TimerSubscriber

	addressChange *addressChangeRequest
}

type addressChangeRequest struct {
	app        LocalApplication
	oldAddress uint8
}

// NewController wires a CANInterface with a fresh, empty remote device table.
func NewController(can *CANInterface) *Controller {
	c := &Controller{
		can:       can,
		apps:      make(map[uint8]*localApp),
		pgnVector: make(map[uint32]uint8),
	}
	c.remote = NewRemoteDeviceTable(canWriter{can: can})
	return c
}

// AddApplication registers app under its current address, wiring it into the controller's dispatch
// table. It must be called before Run.
func (c *Controller) AddApplication(app LocalApplication) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps[app.Address()] = &localApp{app: app, incoming: make(chan nmea.RawMessage, 32)}
	if ts, ok := app.(TimerSubscriber); ok {
		c.timers = append(c.timers, ts)
	}
}

// Subscribe routes every future message for pgn to the application currently registered at address,
// mirroring the Python original's set_pgn_vector(application, [pgn, ...]).
func (c *Controller) Subscribe(address uint8, pgn uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.pgnVector[pgn]; exists {
		return // duplicate vector for this PGN ignored, matching the Python original
	}
	c.pgnVector[pgn] = address
}

// SubscribeCatchAll registers address to receive every data message that has no specific PGN subscriber.
func (c *Controller) SubscribeCatchAll(address uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catchAll = append(c.catchAll, address)
}

// RequestAddressChange records that app has already re-claimed a new address and the dispatch tables
// should be updated to the new address once the current ISO broadcast batch finishes, per the Python
// original's change_application_address/apply_change_application_address two-step (address changes
// cannot be applied mid-dispatch).
func (c *Controller) RequestAddressChange(app LocalApplication, oldAddress uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addressChange = &addressChangeRequest{app: app, oldAddress: oldAddress}
}

func (c *Controller) applyAddressChangeLocked() {
	if c.addressChange == nil {
		return
	}
	req := c.addressChange
	c.addressChange = nil

	slot, ok := c.apps[req.oldAddress]
	if !ok {
		return
	}
	delete(c.apps, req.oldAddress)
	c.apps[req.app.Address()] = slot
}

// Run starts the CAN interface, every registered Application, the remote device table and a
// once-per-second timer loop, then dispatches reassembled messages until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	msgs, canErrs := c.can.Run(ctx)

	var wg sync.WaitGroup
	errs := make(chan error, len(c.apps)+2)

	c.mu.Lock()
	for addr, slot := range c.apps {
		wg.Add(1)
		go func(addr uint8, slot *localApp) {
			defer wg.Done()
			if err := slot.app.Run(ctx, slot.incoming); err != nil && !errors.Is(err, context.Canceled) {
				errs <- fmt.Errorf("application %d: %w", addr, err)
			}
		}(addr, slot)
	}
	c.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.remote.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs <- fmt.Errorf("remote device table: %w", err)
		}
	}()

	c.remote.BroadcastIsoAddressClaimRequest()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case err, ok := <-canErrs:
			if ok && err != nil {
				return err
			}
		case err := <-errs:
			return err
		case <-ticker.C:
			c.mu.Lock()
			timers := append([]TimerSubscriber{}, c.timers...)
			c.mu.Unlock()
			for _, t := range timers {
				t.WakeUp()
			}
		case msg, ok := <-msgs:
			if !ok {
				wg.Wait()
				return nil
			}
			c.route(msg)
		}
	}
}

// route implements the Python original's process_msg dispatch matrix: destination-specific messages go
// straight to that application; broadcast (da=255) ISO-protocol messages go to the remote device table
// and every local application; broadcast data messages go to the single PGN subscriber (if any) plus
// every catch-all application.
func (c *Controller) route(msg nmea.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Header.Destination != nmea.AddressGlobal {
		if slot, ok := c.apps[msg.Header.Destination]; ok {
			c.deliver(slot, msg)
		}
		return
	}

	if isISOProtocolPGN(msg.Header.PGN) {
		if _, err := c.remote.Observe(msg); err != nil {
			_ = err // observation errors are non-fatal: a malformed broadcast from one node should not stop routing
		}
		for _, slot := range c.apps {
			c.deliver(slot, msg)
		}
		c.applyAddressChangeLocked()
		return
	}

	if addr, ok := c.pgnVector[msg.Header.PGN]; ok {
		if slot, ok := c.apps[addr]; ok {
			c.deliver(slot, msg)
		}
	}
	for _, addr := range c.catchAll {
		if slot, ok := c.apps[addr]; ok {
			c.deliver(slot, msg)
		}
	}
}

func (c *Controller) deliver(slot *localApp, msg nmea.RawMessage) {
	select {
	case slot.incoming <- msg:
	default: // application's incoming queue is full; drop rather than block routing for everyone else
	}
}

// isISOProtocolPGN reports whether pgn is one of the ISO 11783 network-management PGNs the remote device
// table and every local Application must see regardless of their own PGN subscriptions.
func isISOProtocolPGN(pgn uint32) bool {
	switch nmea.PGN(pgn) {
	case nmea.PGNISORequest, nmea.PGNISOAddressClaim, nmea.PGNPGNList,
		nmea.PGNProductInfo, nmea.PGNConfigurationInformation, nmea.PGNTPCM, nmea.PGNTPDT:
		return true
	case 126208: // Group Function
		return true
	}
	return false
}
