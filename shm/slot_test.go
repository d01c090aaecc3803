package shm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote64Size(t *testing.T) {
	assert.EqualValues(t, RecordSize, slotSize)
}

func TestInitThenWriteThenRead(t *testing.T) {
	var q Quote64
	q.InitSlot(1, 10)

	q.Write(10_000_000_000, 10_000_100_000, 123456789)

	snap, ok := q.Read()
	require.True(t, ok)
	assert.EqualValues(t, 1, snap.SourceID)
	assert.EqualValues(t, 10, snap.SymbolID)
	assert.EqualValues(t, 10_000_000_000, snap.Bid)
	assert.EqualValues(t, 10_000_100_000, snap.Ask)
	assert.EqualValues(t, 123456789, snap.Ts)
}

func TestSeqIsEvenAfterEachWrite(t *testing.T) {
	var q Quote64
	q.InitSlot(1, 1)
	for i := 0; i < 5; i++ {
		q.Write(int64(i), int64(i), int64(i))
		assert.Zero(t, q.Seq%2)
	}
}

// TestConcurrentReaderNeverObservesATornSnapshot hammers a single slot with
// one writer and many concurrent readers and asserts that every successful
// read matches one of the two values written around it — never a mix of
// fields from different writes (spec.md §8 scenario 4).
func TestConcurrentReaderNeverObservesATornSnapshot(t *testing.T) {
	var q Quote64
	q.InitSlot(1, 1)

	const writes = 2000
	done := make(chan struct{})

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, ok := q.Read()
				if !ok {
					continue
				}
				// bid, ask, ts always travel together: bid == ask-10 and
				// ts == bid/10 by construction below, so any mismatch
				// proves tearing.
				if snap.Bid != 0 {
					assert.Equal(t, snap.Bid+10, snap.Ask)
					assert.Equal(t, snap.Bid/10, snap.Ts)
				}
			}
		}()
	}

	for i := 1; i <= writes; i++ {
		bid := int64(i * 10)
		q.Write(bid, bid+10, bid/10)
	}
	close(done)
	wg.Wait()
}
