package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("tracker_test")
	tracker.Increment(10)
	time.Sleep(10 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.InDelta(t, rate, testutil.ToFloat64(IngestThroughput.WithLabelValues("tracker_test")), 0.0001)
}

func TestObserveStore(t *testing.T) {
	ObserveStore("scan", "observe_test", time.Millisecond, nil)
	ObserveStore("scan", "observe_test", time.Millisecond, errors.New("boom"))

	// one series per status
	assert.Equal(t, 2, testutil.CollectAndCount(StoreLatency))
}

func TestResourceMonitor(t *testing.T) {
	m, err := NewResourceMonitor()
	if !assert.NoError(t, err) {
		return
	}
	usage := m.Sample()
	assert.Greater(t, usage.MemoryRSS, uint64(0))
	assert.Positive(t, usage.Goroutines)
	assert.Equal(t, float64(usage.MemoryRSS), testutil.ToFloat64(ProcessRSS))
}
