package kernel

import (
	"errors"
	"fmt"

	"github.com/cuemby/loom/pkg/clock"
	"github.com/cuemby/loom/pkg/log"
	"github.com/cuemby/loom/pkg/metrics"
	"github.com/cuemby/loom/pkg/policy"
	"github.com/cuemby/loom/pkg/storage"
	"github.com/cuemby/loom/pkg/telemetry"
	"github.com/cuemby/loom/pkg/types"
)

// TryClaim implements the atomic claim protocol for a
// specific work item. The ordering of lock creation before state CAS is
// essential and non-negotiable: it makes the lock file the ground truth
// for claim ownership.
func (k *Kernel) TryClaim(agentID, workID string) (*types.WorkRecord, error) {
	if k.store.IsHalted() {
		return nil, fmt.Errorf("%w", ErrEmergencyHalt)
	}

	agent, err := k.store.GetAgent(agentID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if agent.ConcurrentClaimCap != nil {
		active, err := k.countActiveClaimsFor(agentID)
		if err != nil {
			return nil, err
		}
		if active >= int(*agent.ConcurrentClaimCap) {
			return nil, fmt.Errorf("%w: agent %s at concurrent claim cap %d", ErrCapacityExceeded, agentID, *agent.ConcurrentClaimCap)
		}
	}

	timer := metrics.NewTimer()
	k.hooks.Emit(telemetry.Event{Name: telemetry.ClaimAttempt, AgentID: agentID, WorkID: workID})

	mu := k.stripeFor(workID)
	mu.Lock()
	defer mu.Unlock()

	// Step 1: read WorkState; if absent or not PENDING, there is nothing
	// to claim.
	state, err := k.store.GetWorkState(workID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if state.State != types.WorkPending {
		timer.ObserveDuration(metrics.ClaimLatency)
		k.hooks.Emit(telemetry.Event{Name: telemetry.ClaimLost, AgentID: agentID, WorkID: workID})
		return nil, fmt.Errorf("%w", ErrAlreadyHeld)
	}

	// Step 2: create the lock first. This is the sole correctness
	// primitive for claim uniqueness — never reversed with
	// step 3.
	now := clock.Now()
	lock := &types.ClaimLock{
		SchemaVersion: types.CurrentSchemaVersion,
		WorkID:        workID,
		Owner:         agentID,
		ClaimID:       k.claimGen.New(),
		ClaimTS:       now,
	}
	if err := k.store.CreateLockExclusive(workID, lock); err != nil {
		timer.ObserveDuration(metrics.ClaimLatency)
		if errors.Is(err, storage.ErrAlreadyHeld) {
			k.hooks.Emit(telemetry.Event{Name: telemetry.ClaimLost, AgentID: agentID, WorkID: workID})
			return nil, fmt.Errorf("%w", ErrAlreadyHeld)
		}
		return nil, mapStorageErr(err)
	}

	// Step 3: CAS the WorkState to ACTIVE under the lock we just created.
	next, err := transition(*state, lifecycleEvent{kind: eventClaim, holder: agentID, now: now}, k.cfg.MaxAttempts)
	if err != nil {
		_ = k.store.DeleteLock(workID, agentID)
		timer.ObserveDuration(metrics.ClaimLatency)
		return nil, err
	}
	if err := k.store.CASWorkState(workID, state.Version, &next); err != nil {
		// A concurrent janitor or claimer raced and won; we lose
		// fair-and-square. Release the lock we just created.
		_ = k.store.DeleteLock(workID, agentID)
		timer.ObserveDuration(metrics.ClaimLatency)
		if errors.Is(err, storage.ErrVersionConflict) {
			k.hooks.Emit(telemetry.Event{Name: telemetry.ClaimLost, AgentID: agentID, WorkID: workID})
			return nil, fmt.Errorf("%w", ErrVersionConflict)
		}
		return nil, mapStorageErr(err)
	}

	timer.ObserveDuration(metrics.ClaimLatency)
	k.recordClaimLatency(timer.Duration())
	k.hooks.Emit(telemetry.Event{Name: telemetry.ClaimWon, AgentID: agentID, WorkID: workID, ClaimID: lock.ClaimID})
	claimLog := log.WithClaimID(log.WithWorkID(log.WithAgentID(k.logger, agentID), workID), lock.ClaimID)
	claimLog.Info().Msg("claim acquired")

	record, err := k.store.GetWorkRecord(workID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return record, nil
}

// failureReasonClass buckets a failure into the two classes WorkFailedTotal
// tracks, so free-text failure reasons never become a label value.
func failureReasonClass(retriable bool) string {
	if retriable {
		return "retries_exhausted"
	}
	return "non_retriable"
}

func (k *Kernel) countActiveClaimsFor(agentID string) (int, error) {
	locks, err := k.store.ScanLocks()
	if err != nil {
		return 0, mapStorageErr(err)
	}
	count := 0
	for _, l := range locks {
		if l.Owner == agentID {
			count++
		}
	}
	return count, nil
}

// release is the shared implementation behind Complete/Fail/Abandon: CAS
// the WorkState to its terminal (or back-to-PENDING) state first, then
// delete the lock — inverting the claim protocol's ordering.
func (k *Kernel) release(agentID, workID string, ev lifecycleEvent) error {
	mu := k.stripeFor(workID)
	mu.Lock()
	defer mu.Unlock()

	state, err := k.store.GetWorkState(workID)
	if err != nil {
		return mapStorageErr(err)
	}
	if state.Holder != agentID {
		return fmt.Errorf("%w", ErrNotHolder)
	}

	next, err := transition(*state, ev, k.cfg.MaxAttempts)
	if err != nil {
		return err
	}
	if err := k.store.CASWorkState(workID, state.Version, &next); err != nil {
		return mapStorageErr(err)
	}
	switch next.State {
	case types.WorkCompleted:
		metrics.WorkCompletedTotal.Inc()
	case types.WorkFailed:
		metrics.WorkFailedTotal.WithLabelValues(failureReasonClass(ev.retriable)).Inc()
	}

	if !state.ClaimTS.IsZero() {
		metrics.ClaimHoldDuration.Observe(clock.Now().Sub(state.ClaimTS).Seconds())
	}

	err = k.store.DeleteLock(workID, agentID)
	if err != nil && !errors.Is(err, storage.ErrNotHeld) && !errors.Is(err, storage.ErrOwnerMismatch) {
		return mapStorageErr(err)
	}
	// A NotHeld/OwnerMismatch here means the janitor already reclaimed
	// the work; the state write above still succeeded and is reported as
	// such — we do not fabricate a second write on someone else's behalf.

	k.hooks.Emit(telemetry.Event{Name: telemetry.ClaimReleased, AgentID: agentID, WorkID: workID})
	k.hooks.Emit(telemetry.Event{Name: telemetry.StateTransition, AgentID: agentID, WorkID: workID, Attrs: map[string]string{"to": string(next.State)}})
	return nil
}

// Complete transitions an ACTIVE work item to COMPLETED.
func (k *Kernel) Complete(agentID, workID string) error {
	return k.release(agentID, workID, lifecycleEvent{kind: eventComplete, now: clock.Now()})
}

// Fail transitions an ACTIVE work item per the retry rule.
func (k *Kernel) Fail(agentID, workID, reason string, retriable bool) error {
	return k.release(agentID, workID, lifecycleEvent{kind: eventFail, now: clock.Now(), reason: reason, retriable: retriable})
}

// Abandon returns an ACTIVE work item to PENDING without counting an
// attempt.
func (k *Kernel) Abandon(agentID, workID string) error {
	return k.release(agentID, workID, lifecycleEvent{kind: eventAbandon, now: clock.Now()})
}

// ClaimSpecific attempts to claim a named work item. It reports false
// (not an error) when the item is unavailable for a reason intrinsic to
// racing — AlreadyHeld, VersionConflict, or InvalidState — since those
// are expected outcomes of pull-based claiming, not caller mistakes.
func (k *Kernel) ClaimSpecific(agentID, workID string) (bool, error) {
	if k.store.IsHalted() {
		return false, fmt.Errorf("%w", ErrEmergencyHalt)
	}
	_, err := k.TryClaim(agentID, workID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrAlreadyHeld) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInvalidState) {
		return false, nil
	}
	return false, err
}

// ClaimNext consults the active policy against the current PENDING
// snapshot and tries to claim its pick, retrying against an updated
// snapshot up to Config.PolicySelectRetries times if the pick is already
// gone or the policy misbehaves. EMERGENCY_HALT and an empty backlog both
// surface as "no work", not an error — this is a polling loop, not an
// explicit request for one item.
func (k *Kernel) ClaimNext(agentID string) (*types.WorkRecord, error) {
	if k.store.IsHalted() {
		return nil, nil
	}
	agent, err := k.store.GetAgent(agentID)
	if err != nil {
		return nil, mapStorageErr(err)
	}

	for attempt := 0; attempt < k.cfg.PolicySelectRetries; attempt++ {
		candidates, err := k.pendingCandidates()
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, nil
		}

		agentView := policy.Agent{ID: agent.ID, Role: agent.Role, Specialization: agent.Specialization, StrictSpecialist: agent.StrictSpecialist}
		pol := k.activePolicy()
		polTimer := metrics.NewTimer()
		workID, ok := pol.Select(candidates, agentView)
		polTimer.ObserveDurationVec(metrics.PolicySelectDuration, k.active)
		if !ok {
			return nil, nil
		}

		if !containsWorkID(candidates, workID) {
			k.hooks.Emit(telemetry.Event{Name: telemetry.PolicyViolation, AgentID: agentID, WorkID: workID, Policy: k.active})
			log.WithWorkID(k.logger, workID).Warn().Str("policy", k.active).Msg("policy returned a work id outside its candidate set")
			continue
		}

		record, err := k.TryClaim(agentID, workID)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, ErrAlreadyHeld) || errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrInvalidState) {
			continue
		}
		return nil, err
	}
	return nil, nil
}

func containsWorkID(candidates []policy.Candidate, id string) bool {
	for _, c := range candidates {
		if c.WorkID == id {
			return true
		}
	}
	return false
}

func (k *Kernel) pendingCandidates() ([]policy.Candidate, error) {
	states, err := k.store.ListWorkStates()
	if err != nil {
		return nil, mapStorageErr(err)
	}
	candidates := make([]policy.Candidate, 0, len(states))
	for _, s := range states {
		if s.State != types.WorkPending {
			continue
		}
		record, err := k.store.GetWorkRecord(s.WorkID)
		if err != nil {
			// A record missing for a live state is a consistency defect
			// the janitor should surface, not something the pull loop
			// should crash on.
			continue
		}
		candidates = append(candidates, policy.Candidate{
			WorkID:    record.ID,
			TaskType:  record.TaskType,
			Priority:  record.Priority,
			CreatedAt: record.CreatedAt,
		})
	}
	return candidates, nil
}
