package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	nmea "github.com/sterwen-nav/nmea-router"
	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  []nmea.RawFrame
	toRead  []nmea.RawFrame
	closed  bool
}

func (f *fakeConn) SendFrame(raw nmea.RawFrame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, raw)
	return nil
}

func (f *fakeConn) ReadRawFrame() (nmea.RawFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toRead) == 0 {
		return nmea.RawFrame{}, errReadTimeoutSentinel
	}
	frame := f.toRead[0]
	f.toRead = f.toRead[1:]
	return frame, nil
}

func (f *fakeConn) SetReadTimeout(timeout time.Duration) error { return nil }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

var errReadTimeoutSentinel = errors.New("read timeout")

func newTestInterface(conn *fakeConn) *CANInterface {
	c := &CANInterface{
		conn:               conn,
		ifName:             "vcan0",
		fastPacket:         nmea.NewFastPacketAssembler(nil),
		isoTP:              nmea.NewIsoTPAssembler(),
		receiveDataTimeout: 20 * time.Millisecond,
		writeInterval:      time.Millisecond,
		ready:              make(chan struct{}),
		writeQueue:         make(chan nmea.RawMessage, writeQueueSize),
		now:                time.Now,
	}
	return c
}

func TestCANInterface_SendRefusedUntilClaimed(t *testing.T) {
	conn := &fakeConn{}
	c := newTestInterface(conn)

	err := c.Send(nmea.RawMessage{Data: []byte{1, 2, 3}}, false)
	assert.ErrorIs(t, err, ErrNotClaimed)

	c.SetClaimed(true)
	err = c.Send(nmea.RawMessage{Data: []byte{1, 2, 3}}, false)
	assert.NoError(t, err)
}

func TestCANInterface_WaitForBusReady(t *testing.T) {
	conn := &fakeConn{}
	c := newTestInterface(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := c.WaitForBusReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.SetClaimed(true)
	assert.NoError(t, c.WaitForBusReady(context.Background()))
}

func TestCANInterface_readLoop_singleFrame(t *testing.T) {
	conn := &fakeConn{toRead: []nmea.RawFrame{
		{Header: nmea.CanBusHeader{PGN: 127245, Source: 1}, Length: 3, Data: [8]byte{0x01, 0x02, 0x03}},
	}}
	c := newTestInterface(conn)

	out := make(chan nmea.RawMessage, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_ = c.readLoop(ctx, out)

	select {
	case msg := <-out:
		assert.Equal(t, uint32(127245), msg.Header.PGN)
		assert.Equal(t, []byte{0x01, 0x02, 0x03}, []byte(msg.Data))
	default:
		t.Fatal("expected a reassembled message")
	}
}

func TestCANInterface_sendOne_fastPacketSplit(t *testing.T) {
	conn := &fakeConn{}
	c := newTestInterface(conn)

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	err := c.sendOne(nmea.RawMessage{Header: nmea.CanBusHeader{PGN: 130816}, Data: payload})
	assert.NoError(t, err)
	assert.Greater(t, len(conn.frames), 1)
}
