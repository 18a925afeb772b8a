package kernel

import (
	"testing"
	"time"

	"github.com/cuemby/loom/pkg/policy"
	"github.com/cuemby/loom/pkg/storage"
	"github.com/cuemby/loom/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) (*Kernel, *storage.FileStore) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)
	return k, store
}

func TestNewKernelRejectsBadConfig(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig("")
	_, err = NewKernel(store, cfg, nil)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestNewKernelRejectsTightLivenessWindow(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.AgentLivenessWindow = cfg.HeartbeatInterval
	_, err = NewKernel(store, cfg, nil)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestNewKernelRejectsUnregisteredActivePolicy(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.ActivePolicy = "does_not_exist"
	_, err = NewKernel(store, cfg, nil)
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestNewKernelDefaultsPolicySelectRetries(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.PolicySelectRetries = 0
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, k.cfg.PolicySelectRetries)
}

func TestRegisterAndHeartbeat(t *testing.T) {
	k, _ := newTestKernel(t)
	agent, err := k.Register("worker", 1.0, []string{"build"}, false, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, agent.ID)
	assert.Equal(t, types.AgentActive, agent.Status)

	require.NoError(t, k.Heartbeat(agent.ID))

	err = k.Heartbeat("missing-agent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHeartbeatAfterDeadAgentReapedFailsNotFound(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.HeartbeatInterval = 5 * time.Millisecond
	cfg.AgentLivenessWindow = 15 * time.Millisecond
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)

	agent, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)

	time.Sleep(cfg.AgentLivenessWindow + 10*time.Millisecond)
	require.NoError(t, k.sweepDeadAgents())

	_, err = k.store.GetAgent(agent.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = k.Heartbeat(agent.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterEnforcesMaxAgents(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxAgents = 1
	k, err := NewKernel(store, cfg, nil)
	require.NoError(t, err)

	_, err = k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)

	_, err = k.Register("worker", 1.0, nil, false, nil)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestUnregisterRemovesAgent(t *testing.T) {
	k, _ := newTestKernel(t)
	agent, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)

	require.NoError(t, k.Unregister(agent.ID))

	_, err = k.store.GetAgent(agent.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateWorkAndGetState(t *testing.T) {
	k, _ := newTestKernel(t)
	id, err := k.CreateWork("build", 50, time.Minute, "ref://1")
	require.NoError(t, err)

	state, err := k.GetWorkState(id)
	require.NoError(t, err)
	assert.Equal(t, types.WorkPending, state.State)
	assert.Equal(t, uint64(1), state.Version)
}

func TestListWorkFiltersByState(t *testing.T) {
	k, _ := newTestKernel(t)
	id1, err := k.CreateWork("build", 50, time.Minute, "")
	require.NoError(t, err)
	_, err = k.CreateWork("build", 60, time.Minute, "")
	require.NoError(t, err)

	agent, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	_, err = k.TryClaim(agent.ID, id1)
	require.NoError(t, err)

	pending, err := k.ListWork(types.WorkPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	active, err := k.ListWork(types.WorkActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, id1, active[0].WorkID)

	all, err := k.ListWork("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRegisterAndActivatePolicy(t *testing.T) {
	k, _ := newTestKernel(t)
	require.NoError(t, k.RegisterPolicy("custom", policy.FIFOPriority{}))
	require.NoError(t, k.SetActivePolicy("custom"))

	err := k.SetActivePolicy("nope")
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestRegisterPolicyRejectsNilArgs(t *testing.T) {
	k, _ := newTestKernel(t)
	assert.ErrorIs(t, k.RegisterPolicy("", policy.FIFOPriority{}), ErrContractViolation)
	assert.ErrorIs(t, k.RegisterPolicy("x", nil), ErrContractViolation)
}
