package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TEST SUITE 1: PUBLISHER COUNTERS
// ============================================================================

func TestCounters_ConcurrentUpdatesAndReads(t *testing.T) {
	publisher := NewNotificationPublisher(nil)

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				publisher.recordPublish()
				publisher.recordFailure()
			}
		}()
	}

	// Health reads race the writers the way the HTTP handler races the
	// sweep workers.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writers*perWriter; i++ {
			publisher.GetMetrics()
			publisher.HealthCheck()
		}
	}()
	wg.Wait()

	metrics := publisher.GetMetrics()
	assert.Equal(t, int64(writers*perWriter), metrics["messages_published"])
	assert.Equal(t, int64(writers*perWriter), metrics["messages_failed"])
}

func TestHealthCheck_NoConnectionIsUnhealthy(t *testing.T) {
	publisher := NewNotificationPublisher(nil)

	health := publisher.HealthCheck()

	assert.False(t, health.IsHealthy)
	assert.Equal(t, PayoutEventsQueue, health.Queue)
}
