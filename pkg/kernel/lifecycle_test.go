package kernel

import (
	"testing"
	"time"

	"github.com/cuemby/loom/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingState(workID string) types.WorkState {
	return types.WorkState{
		SchemaVersion: types.CurrentSchemaVersion,
		WorkID:        workID,
		State:         types.WorkPending,
		Version:       1,
	}
}

func TestTransitionClaimPendingToActive(t *testing.T) {
	now := time.Now()
	next, err := transition(pendingState("w1"), lifecycleEvent{kind: eventClaim, holder: "a1", now: now}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkActive, next.State)
	assert.Equal(t, "a1", next.Holder)
	assert.Equal(t, now, next.ClaimTS)
	assert.Equal(t, uint32(1), next.Attempts)
	assert.Equal(t, now, next.UpdatedAt)
}

func TestTransitionClaimRequiresPending(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	_, err := transition(active, lifecycleEvent{kind: eventClaim, holder: "a1", now: time.Now()}, 5)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTransitionCompleteRequiresActive(t *testing.T) {
	_, err := transition(pendingState("w1"), lifecycleEvent{kind: eventComplete, now: time.Now()}, 5)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTransitionCompleteClearsHolder(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	active.Holder = "a1"
	next, err := transition(active, lifecycleEvent{kind: eventComplete, now: time.Now()}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkCompleted, next.State)
	assert.Empty(t, next.Holder)
}

func TestTransitionFailRetriableGoesPending(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	active.Holder = "a1"
	active.Attempts = 1
	next, err := transition(active, lifecycleEvent{kind: eventFail, now: time.Now(), reason: "boom", retriable: true}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkPending, next.State)
	assert.Equal(t, "boom", next.LastFailureReason)
	assert.Empty(t, next.Holder)
}

func TestTransitionFailExhaustedGoesFailed(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	active.Attempts = 5
	next, err := transition(active, lifecycleEvent{kind: eventFail, now: time.Now(), reason: "boom", retriable: true}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkFailed, next.State)
}

func TestTransitionFailNonRetriableGoesFailedImmediately(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	active.Attempts = 1
	next, err := transition(active, lifecycleEvent{kind: eventFail, now: time.Now(), reason: "fatal", retriable: false}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkFailed, next.State)
}

func TestTransitionAbandonDoesNotIncrementAttempts(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	active.Attempts = 2
	next, err := transition(active, lifecycleEvent{kind: eventAbandon, now: time.Now()}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkPending, next.State)
	assert.Equal(t, uint32(2), next.Attempts)
}

func TestTransitionTimeoutBelowMaxReturnsPending(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	active.Attempts = 1
	next, err := transition(active, lifecycleEvent{kind: eventTimeout, now: time.Now()}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkPending, next.State)
}

func TestTransitionTimeoutAtMaxReturnsAbandoned(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	active.Attempts = 5
	next, err := transition(active, lifecycleEvent{kind: eventTimeout, now: time.Now()}, 5)
	require.NoError(t, err)
	assert.Equal(t, types.WorkAbandoned, next.State)
}

func TestTransitionFromTerminalAlwaysFails(t *testing.T) {
	for _, s := range []types.WorkLifecycleState{types.WorkCompleted, types.WorkFailed, types.WorkAbandoned} {
		terminal := pendingState("w1")
		terminal.State = s
		_, err := transition(terminal, lifecycleEvent{kind: eventAbandon, now: time.Now()}, 5)
		assert.ErrorIsf(t, err, ErrInvalidState, "state %s should reject any further transition", s)
	}
}

func TestTransitionUnknownEventKind(t *testing.T) {
	active := pendingState("w1")
	active.State = types.WorkActive
	_, err := transition(active, lifecycleEvent{kind: eventKind("bogus"), now: time.Now()}, 5)
	assert.ErrorIs(t, err, ErrContractViolation)
}
