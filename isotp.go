package nmea

import (
	"errors"
	"sync"
	"time"
)

// ISO-TP / J1939-21 transport protocol broadcast announce message (TP.CM_BAM), one per transaction.
// PGN 60416, 8 data bytes: control byte (0x20 for BAM), total size (2 bytes LE), total packets (1 byte),
// reserved (1 byte, 0xFF), target PGN (3 bytes LE).

var (
	// ErrNoTransaction is returned by AppendPacket when a TP.DT packet arrives for a source address that has
	// no matching TP.CM_BAM transaction in progress.
	ErrNoTransaction = errors.New("isotp: no transaction in progress for source address")
	// ErrLengthMismatch is returned, and the transaction dropped, when a completed transaction received fewer
	// bytes than the totalBytes announced by its TP.CM_BAM, or when totalBytes exceeds ISOTPDataMaxSize.
	ErrLengthMismatch = errors.New("isotp: reassembled length does not match announced total size")
)

type isoTPTransaction struct {
	header CanBusHeader

	expectedPackets uint8
	totalBytes      uint16

	lastReceivedFrameTime time.Time
	receivedPackets       uint8
	data                  [ISOTPDataMaxSize]byte
}

func (t *isoTPTransaction) reset() {
	t.header = CanBusHeader{}
	t.expectedPackets = 0
	t.totalBytes = 0
	t.lastReceivedFrameTime = time.Time{}
	t.receivedPackets = 0
}

// IsoTPAssembler reassembles ISO-TP / J1939-21 broadcast (BAM) transfers: TP.CM_BAM (PGN 60416) announces a
// transaction, a following sequence of TP.DT (PGN 60160) packets of up to 7 payload bytes each carries the data.
// BAM transfers have no destination-specific flow control, so a transaction is keyed by source address alone.
type IsoTPAssembler struct {
	now func() time.Time

	pool         *sync.Pool
	transactions map[uint8]*isoTPTransaction
	lock         sync.Mutex
}

func NewIsoTPAssembler() *IsoTPAssembler {
	pool := new(sync.Pool)
	pool.New = func() any {
		return &isoTPTransaction{}
	}

	return &IsoTPAssembler{
		now:          time.Now,
		pool:         pool,
		transactions: make(map[uint8]*isoTPTransaction),
	}
}

// NewTransaction starts (or restarts) a BAM reassembly transaction for source address sa, as announced by a
// TP.CM_BAM (PGN 60416) control message. A transaction already in progress for sa is discarded.
func (a *IsoTPAssembler) NewTransaction(sa uint8, expectedPackets uint8, totalBytes uint16, targetPGN uint32, prio uint8) {
	a.lock.Lock()
	defer a.lock.Unlock()

	t, ok := a.transactions[sa]
	if !ok {
		t = a.pool.Get().(*isoTPTransaction)
		a.transactions[sa] = t
	}
	t.reset()
	t.header = CanBusHeader{PGN: targetPGN, Priority: prio, Source: sa, Destination: AddressGlobal}
	t.expectedPackets = expectedPackets
	t.totalBytes = totalBytes
	t.lastReceivedFrameTime = a.now()
}

// AppendPacket appends a TP.DT (PGN 60160) data packet for source address sa. data is the 7 (or fewer, for the
// last packet) payload bytes following the sequence-number byte. When the transaction completes, the
// reassembled RawMessage is returned with ok true; the transaction slot is then released back to the pool.
func (a *IsoTPAssembler) AppendPacket(sa uint8, sequenceNumber uint8, data []byte) (RawMessage, bool, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	t, ok := a.transactions[sa]
	if !ok {
		return RawMessage{}, false, ErrNoTransaction
	}

	start := int(sequenceNumber-1) * 7
	end := start + len(data)
	if end > len(t.data) {
		end = len(t.data)
	}
	if start < end {
		copy(t.data[start:end], data)
	}
	t.lastReceivedFrameTime = a.now()
	t.receivedPackets++

	if t.receivedPackets < t.expectedPackets {
		return RawMessage{}, false, nil
	}

	received := (int(t.receivedPackets)-1)*7 + len(data)
	if int(t.totalBytes) > len(t.data) || int(t.totalBytes) > received {
		delete(a.transactions, sa)
		a.pool.Put(t)
		return RawMessage{}, false, ErrLengthMismatch
	}

	out := make([]byte, t.totalBytes)
	copy(out, t.data[:t.totalBytes])
	msg := RawMessage{
		Time:   t.lastReceivedFrameTime,
		Header: t.header,
		Data:   out,
	}

	delete(a.transactions, sa)
	t.reset()
	a.pool.Put(t)

	return msg, true, nil
}

// GC drops BAM transactions that have not received a TP.DT packet in threshold, guarding against a dropped
// final packet leaking a transaction slot forever.
func (a *IsoTPAssembler) GC(now time.Time, threshold time.Duration) {
	a.lock.Lock()
	defer a.lock.Unlock()

	for sa, t := range a.transactions {
		if now.Sub(t.lastReceivedFrameTime) > threshold {
			delete(a.transactions, sa)
			t.reset()
			a.pool.Put(t)
		}
	}
}
