package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/stretchr/testify/assert"
)

type fakeTransport struct {
	opened   int
	messages []nmea.RawMessage
	sent     []nmea.RawMessage
	openErr  error
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.opened++
	return f.openErr
}

func (f *fakeTransport) Read(ctx context.Context) (nmea.RawMessage, error) {
	if len(f.messages) == 0 {
		return nmea.RawMessage{}, context.Canceled
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	return msg, nil
}

func (f *fakeTransport) Send(ctx context.Context, msg nmea.RawMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

type countingPublisher struct {
	id    string
	count int
}

func (p *countingPublisher) ID() string { return p.id }
func (p *countingPublisher) Publish(msg nmea.RawMessage) error {
	p.count++
	return nil
}

func TestRunCouplerLoop_deliversToPublisher(t *testing.T) {
	state := NewCouplerState("test", Bidirectional, 1, time.Millisecond)
	pub := &countingPublisher{id: "p1"}
	state.Register(pub)

	transport := &fakeTransport{messages: []nmea.RawMessage{
		{Header: nmea.CanBusHeader{PGN: 1}},
		{Header: nmea.CanBusHeader{PGN: 2}},
	}}

	err := RunCouplerLoop(context.Background(), state, transport)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, pub.count)
	assert.Equal(t, 1, transport.opened)
	received, _ := state.Counters.Snapshot()
	assert.Equal(t, uint64(2), received)
}

type failingPublisher struct{ id string }

func (p *failingPublisher) ID() string                        { return p.id }
func (p *failingPublisher) Publish(msg nmea.RawMessage) error { return errors.New("full") }

func TestCouplerState_deregistersAfterConsecutiveOverflow(t *testing.T) {
	state := NewCouplerState("test", Bidirectional, 1, time.Millisecond)
	pub := &failingPublisher{id: "p1"}
	state.Register(pub)

	for i := 0; i < maxConsecutiveOverflow; i++ {
		state.publish(nmea.RawMessage{})
	}

	assert.Empty(t, state.publishersSnapshot())
}

func TestOpenWithRetry_givesUpAfterMaxAttempt(t *testing.T) {
	state := NewCouplerState("test", Bidirectional, 2, time.Millisecond)
	transport := &fakeTransport{openErr: errors.New("down")}

	err := openWithRetry(context.Background(), state, transport)
	assert.Error(t, err)
	assert.Equal(t, 2, transport.opened)
}
