package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/loom/pkg/kernel"
	"github.com/cuemby/loom/pkg/storage"
	"github.com/cuemby/loom/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJanitorKernel(t *testing.T) (*kernel.Kernel, string) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := storage.NewFileStore(dataDir)
	require.NoError(t, err)
	cfg := kernel.DefaultConfig(dataDir)
	cfg.HeartbeatInterval = 5 * time.Millisecond
	cfg.AgentLivenessWindow = 15 * time.Millisecond
	cfg.LockTimeout = 15 * time.Millisecond
	cfg.JanitorInterval = 10 * time.Millisecond
	k, err := kernel.NewKernel(store, cfg, nil)
	require.NoError(t, err)
	return k, dataDir
}

func TestJanitorReclaimsStaleClaimsOnTicker(t *testing.T) {
	k, dataDir := newTestJanitorKernel(t)
	_ = dataDir

	agent, err := k.Register("worker", 1.0, nil, false, nil)
	require.NoError(t, err)
	workID, err := k.CreateWork("generic", 50, time.Minute, "")
	require.NoError(t, err)
	_, err = k.TryClaim(agent.ID, workID)
	require.NoError(t, err)

	j := New(k, 10*time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	require.Eventually(t, func() bool {
		state, err := k.GetWorkState(workID)
		return err == nil && state.State == types.WorkPending
	}, 250*time.Millisecond, 10*time.Millisecond)

	cancel()
	err = <-done
	assert.NoError(t, err)
}

func TestJanitorFailsToStartOnMissingDataDir(t *testing.T) {
	k, dataDir := newTestJanitorKernel(t)
	require.NoError(t, os.RemoveAll(dataDir))

	j := New(k, 10*time.Millisecond, nil)
	err := j.Run(context.Background())
	assert.Error(t, err)
}

func TestJanitorObservesHaltMarkerEvents(t *testing.T) {
	k, dataDir := newTestJanitorKernel(t)

	j := New(k, 5*time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "EMERGENCY_HALT"), []byte{}, 0o644))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.Remove(filepath.Join(dataDir, "EMERGENCY_HALT")))

	cancel()
	err := <-done
	assert.NoError(t, err)
}
