package kernel

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cuemby/loom/pkg/clock"
	"github.com/cuemby/loom/pkg/log"
	"github.com/cuemby/loom/pkg/metrics"
	"github.com/cuemby/loom/pkg/policy"
	"github.com/cuemby/loom/pkg/storage"
	"github.com/cuemby/loom/pkg/telemetry"
	"github.com/cuemby/loom/pkg/types"
	"github.com/rs/zerolog"
)

const lockStripes = 256

// Kernel is the coordination kernel's public facade: the exported
// methods below are the Kernel API, one-for-one.
type Kernel struct {
	store    storage.Store
	cfg      Config
	hooks    telemetry.Hook
	logger   zerolog.Logger
	agentGen clock.Generator
	workGen  clock.Generator
	claimGen clock.Generator

	policiesMu sync.RWMutex
	policies   map[string]policy.Policy
	active     string

	// stripes serialize TryClaim/Release from within this process before
	// they ever reach the filesystem. This is a latency optimization
	// only: it avoids two goroutines in this process both paying the
	// O_EXCL failure cost, and is never relied on for correctness across
	// processes.
	stripes [lockStripes]sync.Mutex

	latencyMu sync.Mutex
	latencies []time.Duration
}

const latencyWindow = 100

func (k *Kernel) recordClaimLatency(d time.Duration) {
	k.latencyMu.Lock()
	defer k.latencyMu.Unlock()
	k.latencies = append(k.latencies, d)
	if len(k.latencies) > latencyWindow {
		k.latencies = k.latencies[len(k.latencies)-latencyWindow:]
	}
}

func (k *Kernel) meanClaimLatency() time.Duration {
	k.latencyMu.Lock()
	defer k.latencyMu.Unlock()
	if len(k.latencies) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range k.latencies {
		sum += d
	}
	return sum / time.Duration(len(k.latencies))
}

// NewKernel constructs a Kernel over store with cfg. It registers the two
// built-in policies and validates cfg per SPEC_FULL.md's Open Question
// decisions before returning.
func NewKernel(store storage.Store, cfg Config, hooks telemetry.Hook) (*Kernel, error) {
	if err := (&cfg).validate(); err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = telemetry.Noop
	}

	k := &Kernel{
		store:    store,
		cfg:      cfg,
		hooks:    hooks,
		logger:   log.WithComponent("kernel"),
		agentGen: clock.NewGenerator("agent"),
		workGen:  clock.NewGenerator("work"),
		claimGen: clock.NewGenerator("claim"),
		policies: make(map[string]policy.Policy),
		active:   cfg.ActivePolicy,
	}
	k.policies["fifo_priority"] = policy.FIFOPriority{}
	k.policies["specialization_match"] = policy.SpecializationMatch{}

	if _, ok := k.policies[k.active]; !ok {
		return nil, fmt.Errorf("%w: active_policy %q is not registered", ErrContractViolation, k.active)
	}
	return k, nil
}

func (k *Kernel) stripeFor(workID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(workID))
	return &k.stripes[h.Sum32()%lockStripes]
}

func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w", ErrNotFound)
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%w", ErrAlreadyExists)
	case errors.Is(err, storage.ErrVersionConflict):
		return fmt.Errorf("%w", ErrVersionConflict)
	case errors.Is(err, storage.ErrAlreadyHeld):
		return fmt.Errorf("%w", ErrAlreadyHeld)
	case errors.Is(err, storage.ErrNotHeld), errors.Is(err, storage.ErrOwnerMismatch):
		return fmt.Errorf("%w", ErrNotHolder)
	case errors.Is(err, storage.ErrUnsupportedSchema):
		return fmt.Errorf("%w", ErrContractViolation)
	default:
		return fmt.Errorf("%w: %v", ErrIoError, err)
	}
}

// Register creates a new AgentRecord. Fails with CapacityExceeded if
// MaxAgents is configured and already reached. strictSpecialist, when true,
// means ClaimNext must never fall back to unfiltered candidates for this
// agent even when nothing matches its specialization.
func (k *Kernel) Register(role string, capacity float64, specialization []string, strictSpecialist bool, concurrentCap *uint32) (*types.AgentRecord, error) {
	if k.cfg.MaxAgents > 0 {
		existing, err := k.store.ListAgents()
		if err != nil {
			return nil, mapStorageErr(err)
		}
		if len(existing) >= k.cfg.MaxAgents {
			return nil, fmt.Errorf("%w: max_agents (%d) reached", ErrCapacityExceeded, k.cfg.MaxAgents)
		}
	}

	now := clock.Now()
	agent := &types.AgentRecord{
		SchemaVersion:      types.CurrentSchemaVersion,
		ID:                 k.agentGen.New(),
		Role:               role,
		Capacity:           capacity,
		Specialization:     specialization,
		StrictSpecialist:   strictSpecialist,
		ConcurrentClaimCap: concurrentCap,
		RegisteredAt:       now,
		LastHeartbeat:      now,
		Status:             types.AgentActive,
	}
	if err := k.store.PutAgent(agent); err != nil {
		return nil, mapStorageErr(err)
	}
	metrics.AgentRegistrationsTotal.Inc()
	log.WithAgentID(k.logger, agent.ID).Info().Str("role", role).Msg("agent registered")
	return agent, nil
}

// Heartbeat refreshes an agent's liveness timestamp. Fails with NotFound
// if the agent has already been reaped (e.g. it was declared DEAD and
// removed) or is mid-reap with a DEAD record still visible; either way the
// agent must re-register rather than being silently revived.
func (k *Kernel) Heartbeat(agentID string) error {
	agent, err := k.store.GetAgent(agentID)
	if err != nil {
		return mapStorageErr(err)
	}
	if agent.Status == types.AgentDead {
		return fmt.Errorf("%w: agent %q was declared dead", ErrNotFound, agentID)
	}
	agent.LastHeartbeat = clock.Now()
	agent.Status = types.AgentActive
	if err := k.store.PutAgent(agent); err != nil {
		return mapStorageErr(err)
	}
	return nil
}

// Unregister removes an agent record immediately. It does not reclaim
// that agent's active claims; callers that want reclamation should fail
// or abandon outstanding work first, or rely on the janitor's dead-agent
// sweep.
func (k *Kernel) Unregister(agentID string) error {
	if err := k.store.RemoveAgent(agentID); err != nil {
		return mapStorageErr(err)
	}
	metrics.AgentDeregistrationsTotal.WithLabelValues("voluntary").Inc()
	log.WithAgentID(k.logger, agentID).Info().Msg("agent unregistered")
	return nil
}

// IsHalted reports whether the EMERGENCY_HALT marker is present in the
// data directory.
func (k *Kernel) IsHalted() bool {
	return k.store.IsHalted()
}

// DataDir returns the configured data directory, for collaborators
// (the janitor's filesystem watcher, CLI diagnostics) that need it
// without reaching into Config themselves.
func (k *Kernel) DataDir() string {
	return k.cfg.DataDir
}

// JanitorInterval returns the configured sweep period, for callers (the
// janitor, CLI) that want the configured default rather than an override.
func (k *Kernel) JanitorInterval() time.Duration {
	return k.cfg.JanitorInterval
}

// ListAgents returns every registered agent.
func (k *Kernel) ListAgents() ([]*types.AgentRecord, error) {
	agents, err := k.store.ListAgents()
	return agents, mapStorageErr(err)
}

// UpdateCapacity mutates an agent's nominal capacity in place.
func (k *Kernel) UpdateCapacity(agentID string, capacity float64) error {
	agent, err := k.store.GetAgent(agentID)
	if err != nil {
		return mapStorageErr(err)
	}
	agent.Capacity = capacity
	if err := k.store.PutAgent(agent); err != nil {
		return mapStorageErr(err)
	}
	return nil
}

// CreateWork creates a WorkRecord and its initial PENDING WorkState.
func (k *Kernel) CreateWork(taskType string, priority int, estimatedDuration time.Duration, payloadRef string) (string, error) {
	id := k.workGen.New()
	now := clock.Now()
	record := &types.WorkRecord{
		SchemaVersion:     types.CurrentSchemaVersion,
		ID:                id,
		TaskType:          taskType,
		Priority:          priority,
		EstimatedDuration: estimatedDuration,
		PayloadRef:        payloadRef,
		CreatedAt:         now,
	}
	state := &types.WorkState{
		SchemaVersion: types.CurrentSchemaVersion,
		WorkID:        id,
		State:         types.WorkPending,
		Version:       1,
		UpdatedAt:     now,
	}
	if err := k.store.PutWork(record, state); err != nil {
		return "", mapStorageErr(err)
	}
	metrics.WorkCreatedTotal.Inc()
	return id, nil
}

// GetWorkState returns the current mutable state of a work item.
func (k *Kernel) GetWorkState(workID string) (*types.WorkState, error) {
	state, err := k.store.GetWorkState(workID)
	return state, mapStorageErr(err)
}

// ListWork returns every WorkState whose State matches filter, or every
// WorkState if filter is empty.
func (k *Kernel) ListWork(filter types.WorkLifecycleState) ([]*types.WorkState, error) {
	all, err := k.store.ListWorkStates()
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if filter == "" {
		return all, nil
	}
	out := make([]*types.WorkState, 0, len(all))
	for _, s := range all {
		if s.State == filter {
			out = append(out, s)
		}
	}
	return out, nil
}

// RegisterPolicy adds a named custom policy to the registry. It does not
// activate it; call SetActivePolicy to do that.
func (k *Kernel) RegisterPolicy(name string, p policy.Policy) error {
	if name == "" || p == nil {
		return fmt.Errorf("%w: policy name and implementation are required", ErrContractViolation)
	}
	k.policiesMu.Lock()
	defer k.policiesMu.Unlock()
	k.policies[name] = p
	return nil
}

// SetActivePolicy switches the policy ClaimNext consults. name must
// already be registered.
func (k *Kernel) SetActivePolicy(name string) error {
	k.policiesMu.Lock()
	defer k.policiesMu.Unlock()
	if _, ok := k.policies[name]; !ok {
		return fmt.Errorf("%w: policy %q is not registered", ErrContractViolation, name)
	}
	k.active = name
	return nil
}

func (k *Kernel) activePolicy() policy.Policy {
	k.policiesMu.RLock()
	defer k.policiesMu.RUnlock()
	return k.policies[k.active]
}
