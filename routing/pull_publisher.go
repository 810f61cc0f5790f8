package routing

import (
	"sync"

	nmea "github.com/sterwen-nav/nmea-router"
)

// PullPublisher buffers messages for a consumer that pulls on its own schedule rather than being pushed
// to (a gRPC server stream handler calling pull() once per client Send, per the original's
// grpc_nmea_input_service.py request/response cycle) instead of QueuePublisher's dedicated delivery goroutine.
type PullPublisher struct {
	id      string
	filter  *FilterSet
	maxLost int

	mu      sync.Mutex
	buf     []nmea.RawMessage
	lostRun int
	closed  bool
}

func NewPullPublisher(id string, filter *FilterSet, maxLost int) *PullPublisher {
	if maxLost <= 0 {
		maxLost = 5
	}
	return &PullPublisher{id: id, filter: filter, maxLost: maxLost}
}

func (p *PullPublisher) ID() string { return p.id }

func (p *PullPublisher) Publish(msg nmea.RawMessage) error {
	if p.filter != nil && !p.filter.Keep(msg) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrOverflow
	}
	if len(p.buf) >= defaultQueueCapacity {
		p.lostRun++
		if p.lostRun >= p.maxLost {
			return ErrOverflow
		}
		return nil
	}
	p.lostRun = 0
	p.buf = append(p.buf, msg)
	return nil
}

// Pull returns the next buffered message, if any.
func (p *PullPublisher) Pull() (nmea.RawMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return nmea.RawMessage{}, false
	}
	msg := p.buf[0]
	p.buf = p.buf[1:]
	return msg, true
}

func (p *PullPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
