// Package routing implements the Coupler / Publisher / Filter fabric that moves messages between
// transports (CAN, TCP, UDP, serial, gRPC, replay files) and consumers.
package routing

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
)

// Direction controls which of a Coupler's Read/Send capabilities are actually driven by the run loop.
type Direction int

const (
	Bidirectional Direction = iota
	ReadOnly
	WriteOnly
)

// ErrReadTimeout is a non-fatal read outcome: the run loop just checks its stop condition and tries
// again, per spec.md's "every blocking read uses a timeout... timeouts are not errors".
var ErrReadTimeout = errors.New("routing: read timeout")

// Transport is the capability interface a concrete coupler implements; generalized from the teacher's
// RawMessageReader/RawMessageWriter/RawMessageReaderWriter (interface.go) per DESIGN NOTES §9's "deep
// inheritance replaced by capability interface + free-function run-loop" redesign: there is no Coupler
// base type, only this interface plus the free functions below that drive it.
type Transport interface {
	// Open establishes the underlying connection; may be called again after Close to reopen.
	Open(ctx context.Context) error
	// Read blocks for one message. Returning ErrReadTimeout is non-fatal and retried; any other error
	// closes and reopens the transport (up to maxAttempt); io.EOF is treated as end of stream.
	Read(ctx context.Context) (nmea.RawMessage, error)
	// Send writes one message; only called when the coupler's Direction allows sending.
	Send(ctx context.Context, msg nmea.RawMessage) error
	Close() error
}

// Publisher is anything a Coupler can hand a received message to.
type Publisher interface {
	ID() string
	Publish(msg nmea.RawMessage) error
}

// maxConsecutiveOverflow is how many consecutive Publish errors from one publisher a coupler tolerates
// before deregistering it, per spec.md §4.G/§7's "Sink overflow ... deregister that publisher".
const maxConsecutiveOverflow = 5

// Counters tracks the inbound/outbound message counts spec.md §4.G's "periodic report" needs.
type Counters struct {
	mu       sync.Mutex
	Received uint64
	Sent     uint64
}

func (c *Counters) incReceived() {
	c.mu.Lock()
	c.Received++
	c.mu.Unlock()
}

func (c *Counters) incSent() {
	c.mu.Lock()
	c.Sent++
	c.mu.Unlock()
}

// Snapshot returns the current counts.
func (c *Counters) Snapshot() (received, sent uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Received, c.Sent
}

// TraceFunc is called with every message read or sent, when tracing is enabled for a coupler.
type TraceFunc func(direction string, msg nmea.RawMessage)

// CouplerState is the mutable state a free-function run loop needs: registered publishers, retry
// policy, trace hook and counters. It replaces what would be a base-class field set in an
// inheritance-based design.
type CouplerState struct {
	Name       string
	Direction  Direction
	MaxAttempt int
	OpenDelay  time.Duration
	Trace      TraceFunc
	Counters   Counters

	mu             sync.Mutex
	publishers     map[string]Publisher
	overflowStreak map[string]int
}

// NewCouplerState builds a CouplerState with the spec's default retry policy (unbounded attempts if
// maxAttempt <= 0 means "retry forever", matching the teacher's coupler reconnect loops).
func NewCouplerState(name string, direction Direction, maxAttempt int, openDelay time.Duration) *CouplerState {
	return &CouplerState{
		Name:           name,
		Direction:      direction,
		MaxAttempt:     maxAttempt,
		OpenDelay:      openDelay,
		publishers:     make(map[string]Publisher),
		overflowStreak: make(map[string]int),
	}
}

// Register adds a publisher to receive every message this coupler reads.
func (s *CouplerState) Register(p Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishers[p.ID()] = p
	s.overflowStreak[p.ID()] = 0
}

// Deregister removes a publisher, e.g. after it overflows.
func (s *CouplerState) Deregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.publishers, id)
	delete(s.overflowStreak, id)
}

func (s *CouplerState) publishersSnapshot() []Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Publisher, 0, len(s.publishers))
	for _, p := range s.publishers {
		out = append(out, p)
	}
	return out
}

// publish delivers msg to every registered publisher in order (spec.md §5's "within a single coupler,
// messages are delivered to each publisher in read order"), deregistering any publisher that returns
// ErrOverflow or has failed maxConsecutiveOverflow times in a row.
func (s *CouplerState) publish(msg nmea.RawMessage) {
	for _, p := range s.publishersSnapshot() {
		if err := p.Publish(msg); err != nil {
			s.mu.Lock()
			s.overflowStreak[p.ID()]++
			streak := s.overflowStreak[p.ID()]
			s.mu.Unlock()
			if errors.Is(err, ErrOverflow) || streak >= maxConsecutiveOverflow {
				s.Deregister(p.ID())
			}
			continue
		}
		s.mu.Lock()
		s.overflowStreak[p.ID()] = 0
		s.mu.Unlock()
	}
}

// RunCouplerLoop drives t: opens it (retrying up to state.MaxAttempt times, waiting state.OpenDelay
// between attempts, unless MaxAttempt <= 0 which retries forever), then loops reading and publishing
// until ctx is cancelled or Read returns io.EOF; any other Read error closes t and reopens it after
// state.OpenDelay. It is a free function, not a method on some
// Coupler base type, so the same loop drives every concrete Transport (tcp/udp/serial/replay/...).
func RunCouplerLoop(ctx context.Context, state *CouplerState, t Transport) error {
	for {
		if err := openWithRetry(ctx, state, t); err != nil {
			return err
		}

		err := readLoop(ctx, state, t)
		_ = t.Close()
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return nil // end of stream
		}
		// any non-context error triggers close+reopen, per spec.md §7 "Transport transient"
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(state.OpenDelay):
		}
	}
}

func openWithRetry(ctx context.Context, state *CouplerState, t Transport) error {
	attempt := 0
	for {
		if err := t.Open(ctx); err == nil {
			return nil
		}
		attempt++
		if state.MaxAttempt > 0 && attempt >= state.MaxAttempt {
			return errors.New("routing: " + state.Name + " exhausted open attempts")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(state.OpenDelay):
		}
	}
}

func readLoop(ctx context.Context, state *CouplerState, t Transport) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if state.Direction == WriteOnly {
			<-ctx.Done()
			return ctx.Err()
		}

		msg, err := t.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			return err
		}
		state.Counters.incReceived()
		if state.Trace != nil {
			state.Trace("rx", msg)
		}
		state.publish(msg)
	}
}

// Send writes msg through t, honoring direction and tracing/counting it. Injector.Publish does not go
// through it; it calls Transport.Send directly.
func Send(ctx context.Context, state *CouplerState, t Transport, msg nmea.RawMessage) error {
	if state.Direction == ReadOnly {
		return errors.New("routing: " + state.Name + " is read-only")
	}
	if err := t.Send(ctx, msg); err != nil {
		return err
	}
	state.Counters.incSent()
	if state.Trace != nil {
		state.Trace("tx", msg)
	}
	return nil
}
