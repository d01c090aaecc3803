package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Quote64 is the 64-byte, 64-byte-aligned quote record. Field order and
// width are the wire contract with reader processes — never reorder or
// resize these fields. Only Seq is touched through the atomic package;
// the data fields are bracketed by it and must never be read or written
// outside the seqlock protocol below.
type Quote64 struct {
	Seq       uint64
	SourceID  uint64
	SymbolID  uint64
	Bid       int64
	Ask       int64
	Ts        int64
	Reserved0 uint64
	Reserved1 uint64
}

// slotSize is asserted against RecordSize at package init so a layout
// mistake fails loudly instead of silently corrupting the file.
const slotSize = unsafe.Sizeof(Quote64{})

func init() {
	if slotSize != RecordSize {
		panic(fmt.Sprintf("shm: Quote64 size is %d, expected %d", slotSize, RecordSize))
	}
}

// InitSlot resets a slot this writer owns to its post-construction state:
// even seq, constant source_id/symbol_id, zeroed data and reserved fields.
// Called once per owned slot before the steady-state write loop starts;
// never called again for the life of the process.
func (q *Quote64) InitSlot(sourceID, symbolID uint64) {
	atomic.StoreUint64(&q.Seq, 0)
	q.SourceID = sourceID
	q.SymbolID = symbolID
	q.Bid = 0
	q.Ask = 0
	q.Ts = 0
	q.Reserved0 = 0
	q.Reserved1 = 0
}

// Write publishes (bid, ask, ts) using the seqlock protocol: the sequence
// number is bumped to odd before the plain writes and to even after, so a
// reader that brackets its read with two seq loads either sees a complete
// snapshot or knows to retry. Wait-free: never blocks, never allocates.
func (q *Quote64) Write(bid, ask, ts int64) {
	s := atomic.LoadUint64(&q.Seq)
	atomic.StoreUint64(&q.Seq, s+1)

	q.Bid = bid
	q.Ask = ask
	q.Ts = ts

	atomic.StoreUint64(&q.Seq, s+2)
}

// maxReadRetries bounds the reader retry loop below; this is only used by
// the local test/diagnostic reader, not by the external mmap readers this
// slot is published for.
const maxReadRetries = 1000

// Snapshot is a torn-free read of a slot's published fields.
type Snapshot struct {
	SourceID uint64
	SymbolID uint64
	Bid      int64
	Ask      int64
	Ts       int64
}

// Read performs a bounded-retry seqlock read. It returns ok=false if the
// slot did not stabilize within maxReadRetries iterations — the caller
// decides the policy for a "transiently inconsistent" outcome.
func (q *Quote64) Read() (snap Snapshot, ok bool) {
	for i := 0; i < maxReadRetries; i++ {
		s1 := atomic.LoadUint64(&q.Seq)
		if s1&1 == 1 {
			continue
		}

		snap = Snapshot{
			SourceID: q.SourceID,
			SymbolID: q.SymbolID,
			Bid:      q.Bid,
			Ask:      q.Ask,
			Ts:       q.Ts,
		}

		s2 := atomic.LoadUint64(&q.Seq)
		if s1 != s2 {
			continue
		}
		return snap, true
	}
	return Snapshot{}, false
}
