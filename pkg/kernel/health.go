package kernel

import (
	"github.com/cuemby/loom/pkg/clock"
	"github.com/cuemby/loom/pkg/log"
	"github.com/cuemby/loom/pkg/metrics"
	"github.com/cuemby/loom/pkg/storage"
	"github.com/cuemby/loom/pkg/telemetry"
	"github.com/cuemby/loom/pkg/types"
)

// HealthReading is a point-in-time snapshot: not
// guaranteed monotonic or transactional across calls.
type HealthReading struct {
	WorkByState     map[types.WorkLifecycleState]int
	RegisteredAgents int
	LiveAgents       int
	MeanClaimLatencyMS float64
	BottleneckDetected bool
	BottleneckCount    int
	DiskFreeBytes      uint64
	Halted             bool
}

// SnapshotHealth produces a HealthReading combining work-state counts,
// agent liveness, recent claim latency, and bottleneck detection per
// operators and the janitor rely on.
func (k *Kernel) SnapshotHealth() (HealthReading, error) {
	reading := HealthReading{WorkByState: make(map[types.WorkLifecycleState]int)}

	states, err := k.store.ListWorkStates()
	if err != nil {
		return reading, mapStorageErr(err)
	}
	now := clock.Now()
	oldestPendingAge := func() bool {
		for _, s := range states {
			if s.State == types.WorkPending {
				var since = s.UpdatedAt
				if since.IsZero() {
					continue
				}
				if now.Sub(since) > k.cfg.BottleneckAge {
					return true
				}
			}
		}
		return false
	}

	for _, s := range states {
		reading.WorkByState[s.State]++
		metrics.WorkByState.WithLabelValues(string(s.State)).Set(float64(reading.WorkByState[s.State]))
	}
	reading.BottleneckDetected = reading.WorkByState[types.WorkPending] > 0 && oldestPendingAge()
	reading.BottleneckCount = reading.WorkByState[types.WorkPending]
	metrics.JanitorBottleneckGauge.Set(float64(reading.BottleneckCount))

	agents, err := k.store.ListAgents()
	if err != nil {
		return reading, mapStorageErr(err)
	}
	reading.RegisteredAgents = len(agents)
	agentsByStatus := make(map[types.AgentStatus]int)
	for _, a := range agents {
		agentsByStatus[a.Status]++
		if a.Status != types.AgentDead {
			reading.LiveAgents++
		}
	}
	for status, count := range agentsByStatus {
		metrics.AgentsTotal.WithLabelValues(string(status)).Set(float64(count))
	}

	reading.MeanClaimLatencyMS = float64(k.meanClaimLatency().Microseconds()) / 1000.0

	reading.Halted = k.store.IsHalted()
	if reading.Halted {
		metrics.EmergencyHaltActive.Set(1)
	} else {
		metrics.EmergencyHaltActive.Set(0)
	}

	if free, err := k.store.DiskFree(); err == nil {
		reading.DiskFreeBytes = free
		metrics.StorageDiskFreeBytes.Set(float64(free))
	}

	k.hooks.Emit(telemetry.Event{Name: telemetry.HealthSnapshot})
	return reading, nil
}

// CleanupStale runs the three sweeps once and returns the
// number of work items reclaimed by the stale-claim sweep. It is safe to
// call concurrently with agent traffic and is idempotent: if it crashes
// mid-sweep, the next call resumes from filesystem state.
func (k *Kernel) CleanupStale() (int, error) {
	if err := k.sweepDeadAgents(); err != nil {
		k.logger.Error().Err(err).Msg("dead-agent sweep failed")
	}

	reclaimed, err := k.sweepStaleClaims()
	if err != nil {
		k.logger.Error().Err(err).Msg("stale-claim sweep failed")
	}

	if err := k.sweepRetention(); err != nil {
		k.logger.Error().Err(err).Msg("retention sweep failed")
	}

	return reclaimed, err
}

// sweepDeadAgents declares agents DEAD past their liveness window and
// reaps them immediately: register -> ... -> janitor-declares-dead ->
// removed, with no lingering DEAD record for Heartbeat to revive. A caller
// that heartbeats a reaped agent gets NotFound and must re-register.
func (k *Kernel) sweepDeadAgents() error {
	agents, err := k.store.ListAgents()
	if err != nil {
		return mapStorageErr(err)
	}
	now := clock.Now()
	for _, a := range agents {
		if a.Status == types.AgentDead {
			continue
		}
		if now.Sub(a.LastHeartbeat) > k.cfg.AgentLivenessWindow {
			agentLog := log.WithAgentID(k.logger, a.ID)
			a.Status = types.AgentDead
			if err := k.store.PutAgent(a); err != nil {
				agentLog.Error().Err(err).Msg("failed to mark agent dead")
				continue
			}
			if err := k.store.RemoveAgent(a.ID); err != nil {
				agentLog.Error().Err(err).Msg("failed to reap dead agent")
				continue
			}
			metrics.AgentDeregistrationsTotal.WithLabelValues("dead_sweep").Inc()
			agentLog.Info().Msg("agent declared dead and reaped")
		}
	}
	return nil
}

// sweepStaleClaims reclaims locks whose holder is dead/missing or whose
// age exceeds LockTimeout. The state write happens before the lock
// delete, mirroring the claim protocol's ordering, so a racing claimer
// can never re-acquire the lock while the state still says ACTIVE.
func (k *Kernel) sweepStaleClaims() (int, error) {
	locks, err := k.store.ScanLocks()
	if err != nil {
		return 0, mapStorageErr(err)
	}

	now := clock.Now()
	reclaimed := 0
	for _, lock := range locks {
		stale := now.Sub(lock.ClaimTS) > k.cfg.LockTimeout
		if !stale {
			agent, err := k.store.GetAgent(lock.Owner)
			if err != nil || agent.Status == types.AgentDead {
				stale = true
			}
		}
		if !stale {
			continue
		}

		if err := k.reclaimLock(lock.WorkID, lock.Owner); err != nil {
			log.WithWorkID(k.logger, lock.WorkID).Error().Err(err).Msg("failed to reclaim stale claim")
			continue
		}
		reclaimed++
	}
	return reclaimed, nil
}

func (k *Kernel) reclaimLock(workID, owner string) error {
	mu := k.stripeFor(workID)
	mu.Lock()
	defer mu.Unlock()

	state, err := k.store.GetWorkState(workID)
	if err != nil {
		return mapStorageErr(err)
	}
	if state.State != types.WorkActive {
		// Already resolved by a concurrent release; nothing to reclaim.
		return nil
	}

	next, err := transition(*state, lifecycleEvent{kind: eventTimeout, now: clock.Now()}, k.cfg.MaxAttempts)
	if err != nil {
		return err
	}
	if err := k.store.CASWorkState(workID, state.Version, &next); err != nil {
		// The holder may have just completed/failed the work itself; the
		// lock will be retried on the next sweep if it's still there.
		return mapStorageErr(err)
	}
	if next.State == types.WorkAbandoned {
		metrics.WorkAbandonedTotal.Inc()
	}

	if err := k.store.DeleteLock(workID, owner); err != nil &&
		!errorsIsNotHeld(err) {
		return mapStorageErr(err)
	}

	k.hooks.Emit(telemetry.Event{Name: telemetry.StateTransition, WorkID: workID, Sweep: "stale_claim", Attrs: map[string]string{"to": string(next.State)}})
	return nil
}

func errorsIsNotHeld(err error) bool {
	return err == storage.ErrNotHeld || err == storage.ErrOwnerMismatch
}

func (k *Kernel) sweepRetention() error {
	states, err := k.store.ListWorkStates()
	if err != nil {
		return mapStorageErr(err)
	}
	now := clock.Now()
	for _, s := range states {
		if !s.State.Terminal() {
			continue
		}
		since := s.UpdatedAt
		if since.IsZero() {
			continue
		}
		if now.Sub(since) < k.cfg.Retention {
			continue
		}
		if err := k.store.ArchiveWork(s.WorkID, now); err != nil {
			log.WithWorkID(k.logger, s.WorkID).Error().Err(err).Msg("failed to archive work")
			continue
		}
	}
	return nil
}
