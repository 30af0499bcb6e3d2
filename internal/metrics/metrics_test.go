package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotCounters(t *testing.T) {
	m := NewMonitor()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordFailure(0)

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(2), snap.SuccessfulRequests)
	assert.Equal(t, int64(1), snap.FailedRequests)
	assert.InDelta(t, 66.67, snap.SuccessRate, 0.1)
}

func TestSnapshotLiveGauges(t *testing.T) {
	m := NewMonitor()
	m.SetLive(3, 7)
	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.PendingRequests)
	assert.Equal(t, int64(7), snap.QueuedRequests)
}

func TestSnapshotEmptyHasZeroRate(t *testing.T) {
	m := NewMonitor()
	snap := m.Snapshot()
	assert.Equal(t, 0.0, snap.SuccessRate)
	assert.Equal(t, int64(0), snap.TotalRequests)
}

func TestSnapshotPercentiles(t *testing.T) {
	m := NewMonitor()
	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}
	snap := m.Snapshot()
	assert.Greater(t, snap.P99, snap.P50)
	assert.GreaterOrEqual(t, snap.Max, snap.P99)
}
