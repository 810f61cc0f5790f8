package routing

import (
	"context"
	"errors"
	"sync"

	nmea "github.com/sterwen-nav/nmea-router"
)

// defaultQueueCapacity is the bounded FIFO depth a publisher's delivery task drains, per spec.md §4.H.
const defaultQueueCapacity = 20

// ErrOverflow is raised to a coupler after a publisher has dropped maxLost consecutive messages; the
// coupler is expected to Deregister the publisher on seeing it (CouplerState.publish already does this
// via Publish's error return).
var ErrOverflow = errors.New("routing: publisher queue overflow")

// Consumer is where a QueuePublisher's delivery task hands off a converted, filtered message.
type Consumer interface {
	Deliver(msg nmea.RawMessage) error
}

// ConsumerFunc adapts a plain function to Consumer.
type ConsumerFunc func(msg nmea.RawMessage) error

func (f ConsumerFunc) Deliver(msg nmea.RawMessage) error { return f(msg) }

// QueuePublisher is a delivery-task publisher: a bounded FIFO, an optional FilterSet, and a
// Consumer it hands surviving messages to, matching spec.md §4.H's shared shape. The built-in kinds
// ClientPublisher, Injector and PullPublisher implement Publisher directly and are not built on it.
type QueuePublisher struct {
	id       string
	queue    chan nmea.RawMessage
	filter   *FilterSet
	consumer Consumer
	maxLost  int

	mu      sync.Mutex
	lostRun int
	stopped bool
}

// NewQueuePublisher builds a publisher with defaultQueueCapacity and maxLost consecutive-loss tolerance
// (spec.md's "after max_lost consecutive losses, the publisher raises Overflow").
func NewQueuePublisher(id string, filter *FilterSet, consumer Consumer, maxLost int) *QueuePublisher {
	if maxLost <= 0 {
		maxLost = 5
	}
	return &QueuePublisher{
		id:       id,
		queue:    make(chan nmea.RawMessage, defaultQueueCapacity),
		filter:   filter,
		consumer: consumer,
		maxLost:  maxLost,
	}
}

func (p *QueuePublisher) ID() string { return p.id }

// Publish enqueues msg non-blocking; on a full queue it counts a loss and returns ErrOverflow once
// maxLost consecutive losses have accumulated, signalling the registering coupler to deregister it.
func (p *QueuePublisher) Publish(msg nmea.RawMessage) error {
	select {
	case p.queue <- msg:
		p.mu.Lock()
		p.lostRun = 0
		p.mu.Unlock()
		return nil
	default:
		p.mu.Lock()
		p.lostRun++
		lost := p.lostRun
		p.mu.Unlock()
		if lost >= p.maxLost {
			return ErrOverflow
		}
		return nil
	}
}

// Run is the delivery task: pop one message, apply the filter (pass-through if none), deliver to the
// consumer. A delivery failure is fatal to this publisher's task and stops it, per spec.md §4.H
// ("failure to deliver closes the transport and terminates the publisher").
func (p *QueuePublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.stopped = true
			p.mu.Unlock()
			return ctx.Err()
		case msg := <-p.queue:
			if p.filter != nil && !p.filter.Keep(msg) {
				continue
			}
			if err := p.consumer.Deliver(msg); err != nil {
				p.mu.Lock()
				p.stopped = true
				p.mu.Unlock()
				return err
			}
		}
	}
}

// Stopped reports whether the delivery task has exited.
func (p *QueuePublisher) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
