package kernel

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/loom/pkg/policy"
	"github.com/cuemby/loom/pkg/storage"
	"github.com/cuemby/loom/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHaltMarker(t *testing.T, dataDir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "EMERGENCY_HALT"), []byte{}, 0o644))
}

func removeHaltMarker(t *testing.T, dataDir string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(dataDir, "EMERGENCY_HALT")))
}

// Scenario 1: two agents race for one item.
func TestScenarioTwoAgentsRaceForOneItem(t *testing.T) {
	k, _ := newTestKernel(t)
	a, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	b, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	jobID, err := k.CreateWork("generic", 50, time.Minute, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*types.WorkRecord, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0], _ = k.ClaimNext(a.ID) }()
	go func() { defer wg.Done(); results[1], _ = k.ClaimNext(b.ID) }()
	wg.Wait()

	winners := 0
	var holder string
	for i, r := range results {
		if r != nil {
			winners++
			assert.Equal(t, jobID, r.ID)
			if i == 0 {
				holder = a.ID
			} else {
				holder = b.ID
			}
		}
	}
	assert.Equal(t, 1, winners)

	state, err := k.GetWorkState(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkActive, state.State)
	assert.Equal(t, holder, state.Holder)
	assert.Equal(t, uint32(1), state.Attempts)
}

// Scenario 2: crash recovery via the janitor's dead-agent and
// stale-claim sweeps.
func TestScenarioCrashRecovery(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.HeartbeatInterval = 10 * time.Millisecond
	cfg.AgentLivenessWindow = 30 * time.Millisecond
	cfg.LockTimeout = 30 * time.Millisecond
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)

	a, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	jobID, err := k.CreateWork("generic", 50, time.Minute, "")
	require.NoError(t, err)

	record, err := k.ClaimNext(a.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	require.Equal(t, jobID, record.ID)

	// Simulate a crash: no more heartbeats. Wait past the liveness window
	// and run the sweep loop a janitor would run on its ticker.
	time.Sleep(cfg.AgentLivenessWindow + cfg.LockTimeout + 20*time.Millisecond)
	_, err = k.CleanupStale()
	require.NoError(t, err)

	_, err = k.store.GetAgent(a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	state, err := k.GetWorkState(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkPending, state.State)
	assert.Equal(t, uint32(1), state.Attempts)

	lock, err := k.store.ReadLock(jobID)
	require.NoError(t, err)
	assert.Nil(t, lock)

	// The reaped agent must re-register; heartbeating its old id fails.
	err = k.Heartbeat(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Scenario 3: exhausted retries.
func TestScenarioExhaustedRetries(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxAttempts = 2
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)

	a, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	jobID, err := k.CreateWork("generic", 50, time.Minute, "")
	require.NoError(t, err)

	_, err = k.TryClaim(a.ID, jobID)
	require.NoError(t, err)
	require.NoError(t, k.Fail(a.ID, jobID, "transient", true))

	state, err := k.GetWorkState(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkPending, state.State)
	assert.Equal(t, uint32(1), state.Attempts)

	_, err = k.TryClaim(a.ID, jobID)
	require.NoError(t, err)
	require.NoError(t, k.Fail(a.ID, jobID, "transient", true))

	state, err = k.GetWorkState(jobID)
	require.NoError(t, err)
	assert.Equal(t, types.WorkFailed, state.State)
	assert.Equal(t, uint32(2), state.Attempts)

	lock, err := k.store.ReadLock(jobID)
	require.NoError(t, err)
	assert.Nil(t, lock)
}

// Scenario 4: specialization filter.
func TestScenarioSpecializationFilter(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.ActivePolicy = "specialization_match"
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)

	w1, err := k.Register("worker", 1.0, []string{"gpu"}, false, nil)
	require.NoError(t, err)
	w2, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)

	jobA, err := k.CreateWork("gpu", 10, time.Minute, "")
	require.NoError(t, err)
	jobB, err := k.CreateWork("cpu", 20, time.Minute, "")
	require.NoError(t, err)

	recordW1, err := k.ClaimNext(w1.ID)
	require.NoError(t, err)
	require.NotNil(t, recordW1)
	assert.Equal(t, jobA, recordW1.ID)

	recordW2, err := k.ClaimNext(w2.ID)
	require.NoError(t, err)
	require.NotNil(t, recordW2)
	assert.Equal(t, jobB, recordW2.ID)
}

// A strict specialist registered through the Kernel API must never be
// offered work outside its specialization, even when nothing else is
// competing for it.
func TestScenarioStrictSpecialistDeclinesUnmatchedWork(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.ActivePolicy = "specialization_match"
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)

	strict, err := k.Register("worker", 1.0, []string{"gpu"}, true, nil)
	require.NoError(t, err)

	_, err = k.CreateWork("cpu", 20, time.Minute, "")
	require.NoError(t, err)

	record, err := k.ClaimNext(strict.ID)
	require.NoError(t, err)
	assert.Nil(t, record)

	gpuJob, err := k.CreateWork("gpu", 10, time.Minute, "")
	require.NoError(t, err)

	record, err = k.ClaimNext(strict.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, gpuJob, record.ID)
}

// misbehavingPolicy always returns a work id outside the candidate set
// it was handed, modeling scenario 5.
type misbehavingPolicy struct{}

func (misbehavingPolicy) Select(candidates []policy.Candidate, agent policy.Agent) (string, bool) {
	return "not-a-real-work-id", true
}

// Scenario 5: policy misbehaves.
func TestScenarioPolicyMisbehaves(t *testing.T) {
	k, _ := newTestKernel(t)
	require.NoError(t, k.RegisterPolicy("bogus", misbehavingPolicy{}))
	require.NoError(t, k.SetActivePolicy("bogus"))

	a, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	_, err = k.CreateWork("generic", 50, time.Minute, "")
	require.NoError(t, err)

	record, err := k.ClaimNext(a.ID)
	require.NoError(t, err)
	assert.Nil(t, record)
}

// Scenario 6: emergency halt.
func TestScenarioHalt(t *testing.T) {
	dataDir := t.TempDir()
	store, err := storage.NewFileStore(dataDir)
	require.NoError(t, err)
	cfg := DefaultConfig(dataDir)
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)

	a, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	jobID, err := k.CreateWork("generic", 50, time.Minute, "")
	require.NoError(t, err)

	writeHaltMarker(t, dataDir)
	record, err := k.ClaimNext(a.ID)
	require.NoError(t, err)
	assert.Nil(t, record)

	removeHaltMarker(t, dataDir)
	record, err = k.ClaimNext(a.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, jobID, record.ID)
}
