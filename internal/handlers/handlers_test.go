package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendLatest_BurstKeepsNewestSnapshot(t *testing.T) {
	events := make(chan any, 1)

	for i := 1; i <= 12; i++ {
		sendLatest(events, i)
	}

	assert.Equal(t, 12, <-events, "a burst must leave the current state pending, not a stale one")
	assert.Empty(t, events)
}

func TestSendLatest_DeliversEverySnapshotWhenDrained(t *testing.T) {
	events := make(chan any, 1)

	sendLatest(events, "a")
	assert.Equal(t, "a", <-events)

	sendLatest(events, "b")
	assert.Equal(t, "b", <-events)
}
