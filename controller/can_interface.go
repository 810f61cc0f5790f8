// Package controller hosts the Active Controller and the CAN bus interface it drives.
package controller

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/sterwen-nav/nmea-router/socketcan"
)

// ErrNotClaimed is returned by Send when force is false and SetClaimed(true) has not been called yet,
// i.e. the local Application has no address to transmit from yet.
var ErrNotClaimed = errors.New("controller: cannot send, address not claimed yet")

// defaultBandwidthPercent and busBitRate give the default writer pacing budget: 20% of a 250kbit/s
// NMEA2000 bus, per the Python original's SocketCANWriter default.
const (
	busBitRate              = 250_000
	defaultBandwidthPercent = 20
	maxWriteRate            = 2000 // msg/s ceiling regardless of computed bandwidth budget
	writeQueueSize          = 256
	burstSize               = 5
	burstInterval           = 2 * time.Millisecond
)

// rawFrameConn is the subset of socketcan.Connection the interface needs; declared as an interface so
// tests can substitute a fake bus without opening a real SocketCAN socket.
type rawFrameConn interface {
	SendFrame(raw nmea.RawFrame) error
	ReadRawFrame() (nmea.RawFrame, error)
	SetReadTimeout(timeout time.Duration) error
	Close() error
}

// CANInterface wraps a SocketCAN connection with what socketcan.Device's FIXMEs left undone: an
// address-claimed send gate, Fast-Packet/ISO-TP reassembly on read, bandwidth-paced writes and an
// optional trace file. Grounded on socketcan/device.go's ReadRawMessage loop shape and the Python
// original's SocketCANWriter pacing loop.
type CANInterface struct {
	conn   rawFrameConn
	ifName string

	fastPacket *nmea.FastPacketAssembler
	isoTP      *nmea.IsoTPAssembler

	receiveDataTimeout time.Duration
	writeInterval      time.Duration

	mu      sync.Mutex
	claimed bool

	ready     chan struct{}
	readyOnce sync.Once

	writeQueue chan nmea.RawMessage

	trace   *os.File
	traceMu sync.Mutex

	now func() time.Time
}

// Option configures a CANInterface at construction time.
type Option func(*CANInterface)

// WithFastPacketPGNs configures the PGNs reassembled from Fast-Packet frames.
func WithFastPacketPGNs(pgns []uint32) Option {
	return func(c *CANInterface) { c.fastPacket = nmea.NewFastPacketAssembler(pgns) }
}

// WithBandwidthPercent sets the fraction of busBitRate the writer goroutine is allowed to use,
// deriving a minimum inter-frame interval from it (capped by maxWriteRate).
func WithBandwidthPercent(percent int) Option {
	return func(c *CANInterface) {
		if percent <= 0 {
			percent = defaultBandwidthPercent
		}
		// Budget bits/sec, converted to frames/sec assuming a worst-case ~108-bit extended CAN frame
		// (header + 8 data bytes + stuffing), then capped at maxWriteRate.
		budgetBitsPerSec := busBitRate * percent / 100
		ratePerSec := budgetBitsPerSec / 108
		if ratePerSec <= 0 || ratePerSec > maxWriteRate {
			ratePerSec = maxWriteRate
		}
		c.writeInterval = time.Second / time.Duration(ratePerSec)
	}
}

// WithTraceFile opens path and writes a "timestamp,direction,can_id_hex,payload_hex" line per frame sent
// or received, grounded on canboat/inputoutput.go's MarshalRawMessage CSV-style writer.
func WithTraceFile(path string) Option {
	return func(c *CANInterface) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			c.trace = f
		}
	}
}

// NewCANInterface constructs a CANInterface over an already-initialized SocketCAN connection.
func NewCANInterface(conn *socketcan.Connection, ifName string, opts ...Option) *CANInterface {
	c := &CANInterface{
		conn:               conn,
		ifName:             ifName,
		fastPacket:         nmea.NewFastPacketAssembler(nil),
		isoTP:              nmea.NewIsoTPAssembler(),
		receiveDataTimeout: 5 * time.Second,
		ready:              make(chan struct{}),
		writeQueue:         make(chan nmea.RawMessage, writeQueueSize),
		now:                time.Now,
	}
	WithBandwidthPercent(defaultBandwidthPercent)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetClaimed records that the local Application has finished address-claim arbitration, unblocking
// Send(force=false) and any WaitForBusReady callers.
func (c *CANInterface) SetClaimed(claimed bool) {
	c.mu.Lock()
	c.claimed = claimed
	c.mu.Unlock()
	if claimed {
		c.readyOnce.Do(func() { close(c.ready) })
	}
}

// WaitForBusReady blocks until SetClaimed(true) has been called or ctx is cancelled.
func (c *CANInterface) WaitForBusReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send transmits msg as one or more CAN frames (Fast-Packet split if the payload does not fit one
// frame). Unless force is true (address-claim broadcasts, which must go out before claiming completes),
// Send refuses with ErrNotClaimed until SetClaimed(true).
func (c *CANInterface) Send(msg nmea.RawMessage, force bool) error {
	c.mu.Lock()
	claimed := c.claimed
	c.mu.Unlock()
	if !force && !claimed {
		return ErrNotClaimed
	}

	select {
	case c.writeQueue <- msg:
		return nil
	default:
		return fmt.Errorf("controller: write queue full for %s", c.ifName)
	}
}

// Run drives the background reader and writer goroutines until ctx is cancelled, delivering fully
// reassembled messages on the returned channel.
func (c *CANInterface) Run(ctx context.Context) (<-chan nmea.RawMessage, <-chan error) {
	out := make(chan nmea.RawMessage, 64)
	errc := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := c.readLoop(ctx, out); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.writeLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()
	go func() {
		wg.Wait()
		close(out)
		close(errc)
	}()

	return out, errc
}

// readLoop mirrors socketcan.Device.ReadRawMessage's per-iteration read-timeout/context-check loop, but
// fills in the "FIXME: add assembler logic" gap: frames carrying the ISO-TP transport PGNs go to the BAM
// reassembler, every other frame goes through the Fast-Packet assembler (which also passes single-frame
// messages straight through).
func (c *CANInterface) readLoop(ctx context.Context, out chan<- nmea.RawMessage) error {
	start := c.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.conn.SetReadTimeout(50 * time.Millisecond); err != nil {
			return err
		}
		frame, err := c.conn.ReadRawFrame()
		now := c.now()
		if err != nil {
			if isReadTimeout(err) {
				if now.Sub(start) > c.receiveDataTimeout {
					return err
				}
				continue
			}
			return err
		}
		start = now
		c.writeTrace("rx", frame.Header.Uint32(), frame.Data[:frame.Length])

		msg, err := c.assemble(frame)
		if err != nil {
			continue // reassembly errors (unexpected TP.DT, length mismatch) drop the transaction, not the bus
		}
		if msg == nil {
			continue // still assembling a multi-frame message
		}
		select {
		case out <- *msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isReadTimeout(err error) bool {
	return err != nil && err.Error() == "read timeout"
}

// assemble routes frame through the ISO-TP BAM reassembler when it carries a transport-protocol PGN, else
// through the Fast-Packet assembler (which is also the single-frame passthrough path).
func (c *CANInterface) assemble(frame nmea.RawFrame) (*nmea.RawMessage, error) {
	switch nmea.PGN(frame.Header.PGN) {
	case nmea.PGNTPCM:
		if frame.Length < 8 || frame.Data[0] != 0x20 { // 0x20 == BAM control byte; RTS/CTS connections are out of scope
			return nil, nil
		}
		totalBytes := uint16(frame.Data[1]) | uint16(frame.Data[2])<<8
		expectedPackets := frame.Data[3]
		targetPGN := uint32(frame.Data[5]) | uint32(frame.Data[6])<<8 | uint32(frame.Data[7])<<16
		c.isoTP.NewTransaction(frame.Header.Source, expectedPackets, totalBytes, targetPGN, frame.Header.Priority)
		return nil, nil
	case nmea.PGNTPDT:
		if frame.Length < 1 {
			return nil, nil
		}
		msg, complete, err := c.isoTP.AppendPacket(frame.Header.Source, frame.Data[0], frame.Data[1:frame.Length])
		if err != nil {
			return nil, err
		}
		if !complete {
			return nil, nil
		}
		return &msg, nil
	default:
		var msg nmea.RawMessage
		if c.fastPacket.Assemble(frame, &msg) {
			return &msg, nil
		}
		return nil, nil
	}
}

// writeLoop sends queued messages at a minimum pace of writeInterval. When the queue is within two slots of
// full it switches to burst mode, sending the next burstSize messages burstInterval apart before pacing
// resumes, per the Python original's SocketCANWriter.
func (c *CANInterface) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.writeInterval)
	defer ticker.Stop()

	burstRemaining := 0
	for {
		if burstRemaining == 0 && len(c.writeQueue) >= writeQueueSize-2 {
			burstRemaining = burstSize
		}
		interval := c.writeInterval
		if burstRemaining > 0 {
			interval = burstInterval
		}
		ticker.Reset(interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case msg := <-c.writeQueue:
				if burstRemaining > 0 {
					burstRemaining--
				}
				if err := c.sendOne(msg); err != nil {
					return err
				}
			default:
			}
		}
	}
}

// sendOne splits msg into frames (via the Fast-Packet splitter when it does not fit one frame) and writes
// each in turn.
func (c *CANInterface) sendOne(msg nmea.RawMessage) error {
	if len(msg.Data) <= 8 {
		var data [8]byte
		copy(data[:], msg.Data)
		frame := nmea.RawFrame{Time: msg.Time, Header: msg.Header, Length: uint8(len(msg.Data)), Data: data}
		return c.sendFrame(frame)
	}

	for _, frame := range c.fastPacket.Split(msg.Header.PGN, msg.Data) {
		frame.Time = msg.Time
		frame.Header = msg.Header
		if err := c.sendFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (c *CANInterface) sendFrame(frame nmea.RawFrame) error {
	c.writeTrace("tx", frame.Header.Uint32(), frame.Data[:frame.Length])
	return c.conn.SendFrame(frame)
}

func (c *CANInterface) writeTrace(direction string, canID uint32, payload []byte) {
	if c.trace == nil {
		return
	}
	c.traceMu.Lock()
	defer c.traceMu.Unlock()
	fmt.Fprintf(c.trace, "%s,%s,%08x,%s\n", c.now().Format(time.RFC3339Nano), direction, canID, hex.EncodeToString(payload))
}

// Close releases the trace file and underlying connection.
func (c *CANInterface) Close() error {
	if c.trace != nil {
		_ = c.trace.Close()
	}
	return c.conn.Close()
}
