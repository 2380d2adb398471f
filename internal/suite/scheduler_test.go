package suite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/specto/internal/common"
)

func TestRunGateSerializes(t *testing.T) {
	gate := &RunGate{}
	require.True(t, gate.TryAcquire())
	assert.False(t, gate.TryAcquire(), "a held gate must reject further runs")

	gate.Release()
	assert.True(t, gate.TryAcquire(), "a released gate accepts the next run")
}

func TestScheduledTickYieldsToRunInProgress(t *testing.T) {
	gate := &RunGate{}
	require.True(t, gate.TryAcquire(), "an on-demand run holds the gate")

	// runner is nil: reaching it would panic, so a clean return proves the
	// tick deferred to the run already in progress.
	s := &Scheduler{
		suite:  Suite{Name: "sorting"},
		gate:   gate,
		logger: common.GetLogger(),
	}
	s.tick(context.Background())

	gate.Release()
	assert.True(t, gate.TryAcquire(), "the skipped tick must not leave the gate held")
}
