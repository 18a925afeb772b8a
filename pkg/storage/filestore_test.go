package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/loom/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestPutGetAgent(t *testing.T) {
	s := newTestStore(t)
	agent := &types.AgentRecord{
		SchemaVersion: types.CurrentSchemaVersion,
		ID:            "agent-1",
		Role:          "generic",
		Capacity:      1.0,
		Status:        types.AgentActive,
	}
	require.NoError(t, s.PutAgent(agent))

	got, err := s.GetAgent("agent-1")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, got.ID)
	assert.Equal(t, agent.Status, got.Status)

	_, err = s.GetAgent("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAgents(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.PutAgent(&types.AgentRecord{SchemaVersion: 1, ID: id}))
	}
	agents, err := s.ListAgents()
	require.NoError(t, err)
	assert.Len(t, agents, 3)
}

func TestRemoveAgentIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RemoveAgent("nope"))
}

func TestPutWorkAndCAS(t *testing.T) {
	s := newTestStore(t)
	record := &types.WorkRecord{SchemaVersion: 1, ID: "job-1", TaskType: "cpu", Priority: 50, CreatedAt: time.Now()}
	state := &types.WorkState{SchemaVersion: 1, WorkID: "job-1", State: types.WorkPending, Version: 1}
	require.NoError(t, s.PutWork(record, state))

	got, err := s.GetWorkState("job-1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkPending, got.State)
	assert.Equal(t, uint64(1), got.Version)

	next := *got
	next.State = types.WorkActive
	next.Holder = "agent-1"
	require.NoError(t, s.CASWorkState("job-1", got.Version, &next))

	after, err := s.GetWorkState("job-1")
	require.NoError(t, err)
	assert.Equal(t, types.WorkActive, after.State)
	assert.Equal(t, uint64(2), after.Version)

	// Stale CAS fails.
	err = s.CASWorkState("job-1", got.Version, &next)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestCreateLockExclusiveOnlyOneWinner(t *testing.T) {
	s := newTestStore(t)
	record := &types.WorkRecord{SchemaVersion: 1, ID: "job-2", CreatedAt: time.Now()}
	state := &types.WorkState{SchemaVersion: 1, WorkID: "job-2", State: types.WorkPending, Version: 1}
	require.NoError(t, s.PutWork(record, state))

	const n = 20
	var wg sync.WaitGroup
	wins := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.CreateLockExclusive("job-2", &types.ClaimLock{
				SchemaVersion: 1,
				WorkID:        "job-2",
				Owner:         filepath.Join("agent", string(rune('a'+i))),
				ClaimID:       "claim",
				ClaimTS:       time.Now(),
			})
			wins[i] = err == nil
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one goroutine should win the exclusive create")
}

func TestDeleteLockOwnerMismatch(t *testing.T) {
	s := newTestStore(t)
	lock := &types.ClaimLock{SchemaVersion: 1, WorkID: "job-3", Owner: "agent-a", ClaimID: "c1", ClaimTS: time.Now()}
	require.NoError(t, s.CreateLockExclusive("job-3", lock))

	err := s.DeleteLock("job-3", "agent-b")
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	require.NoError(t, s.DeleteLock("job-3", "agent-a"))

	err = s.DeleteLock("job-3", "agent-a")
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestScanLocks(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"w1", "w2"} {
		require.NoError(t, s.CreateLockExclusive(id, &types.ClaimLock{
			SchemaVersion: 1, WorkID: id, Owner: "agent-x", ClaimID: id, ClaimTS: time.Now(),
		}))
	}
	locks, err := s.ScanLocks()
	require.NoError(t, err)
	assert.Len(t, locks, 2)
}

func TestArchiveWorkRequiresTerminal(t *testing.T) {
	s := newTestStore(t)
	record := &types.WorkRecord{SchemaVersion: 1, ID: "job-4", CreatedAt: time.Now()}
	state := &types.WorkState{SchemaVersion: 1, WorkID: "job-4", State: types.WorkPending, Version: 1}
	require.NoError(t, s.PutWork(record, state))

	err := s.ArchiveWork("job-4", time.Now())
	assert.Error(t, err)

	completed := *state
	completed.State = types.WorkCompleted
	require.NoError(t, s.CASWorkState("job-4", 1, &completed))

	require.NoError(t, s.ArchiveWork("job-4", time.Now()))

	_, err = s.GetWorkState("job-4")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsHalted(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.IsHalted())

	require.NoError(t, writeJSONAtomic(filepath.Join(s.dataDir, haltMarkerName), map[string]bool{"halt": true}))
	assert.True(t, s.IsHalted())
}

func TestUnsupportedSchemaFailsClosed(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, writeJSONAtomic(s.agentPath("future"), &types.AgentRecord{
		SchemaVersion: types.CurrentSchemaVersion + 1,
		ID:            "future",
	}))
	_, err := s.GetAgent("future")
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}
