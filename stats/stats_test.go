package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAccumulates(t *testing.T) {
	l := NewLatency(5000)
	l.Record(100)
	l.Record(9000)
	l.Record(50)

	r := l.Snapshot()
	assert.EqualValues(t, 3, r.TotalMessages)
	assert.EqualValues(t, 9000, r.MaxProcUs)
	assert.EqualValues(t, 1, r.OverThresholdCnt)
	assert.InDelta(t, 33.33, r.OverThresholdPercent(), 0.01)
}

func TestMaxIsTrueMaximumUnderConcurrency(t *testing.T) {
	l := NewLatency(5000)
	var wg sync.WaitGroup
	for i := 1; i <= 1000; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			l.Record(uint64(v))
		}(i)
	}
	wg.Wait()

	r := l.Snapshot()
	assert.EqualValues(t, 1000, r.TotalMessages)
	assert.EqualValues(t, 1000, r.MaxProcUs)
}

func TestIsSlow(t *testing.T) {
	l := NewLatency(5000)
	assert.False(t, l.IsSlow(4999))
	assert.False(t, l.IsSlow(5000))
	assert.True(t, l.IsSlow(5001))
}

func TestOverThresholdPercentWithNoSamples(t *testing.T) {
	l := NewLatency(5000)
	assert.Zero(t, l.Snapshot().OverThresholdPercent())
}
