package kernel

import (
	"fmt"
	"time"
)

// Config is read once at startup and treated as immutable for the life
// of the kernel; runtime changes require a restart.
type Config struct {
	DataDir string

	// LockTimeout is the maximum age of a ClaimLock before the janitor
	// reclaims it.
	LockTimeout time.Duration

	// HeartbeatInterval is advisory: the kernel never sends heartbeats
	// itself, agents do. It exists solely so NewKernel can validate it
	// against AgentLivenessWindow (Open Question 1 in SPEC_FULL.md).
	HeartbeatInterval time.Duration

	// AgentLivenessWindow is the heartbeat age past which an agent is DEAD.
	AgentLivenessWindow time.Duration

	// JanitorInterval is the sweep period.
	JanitorInterval time.Duration

	// MaxAttempts caps the attempt counter; reaching it promotes a
	// retriable fail to terminal FAILED, or a timeout to ABANDONED.
	MaxAttempts uint32

	// Retention is the age at which terminal WorkStates are archived.
	Retention time.Duration

	// MaxAgents is a hard cap on simultaneously registered agents. Zero
	// means unbounded.
	MaxAgents int

	// ActivePolicy names the selection policy to use at startup; it must
	// be one of the two built-ins ("fifo_priority",
	// "specialization_match"). Custom policies are added afterwards with
	// RegisterPolicy and activated with SetActivePolicy.
	ActivePolicy string

	// PolicySelectRetries bounds how many times one ClaimNext call asks
	// the active policy, the first ask included; later asks use an
	// updated candidate set after a lost race or a policy violation.
	PolicySelectRetries int

	// BottleneckAge is the PENDING backlog age past which SnapshotHealth
	// reports a bottleneck.
	BottleneckAge time.Duration
}

// DefaultConfig returns the defaults recorded in SPEC_FULL.md's Open
// Questions section.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:             dataDir,
		LockTimeout:         30 * time.Second,
		HeartbeatInterval:   5 * time.Second,
		AgentLivenessWindow: 20 * time.Second,
		JanitorInterval:     10 * time.Second,
		MaxAttempts:         5,
		Retention:           24 * time.Hour,
		MaxAgents:           0,
		ActivePolicy:        "fifo_priority",
		PolicySelectRetries: 8,
		BottleneckAge:       60 * time.Second,
	}
}

// validate enforces the one cross-field contract the config carries: a
// liveness window tighter than 3x the heartbeat interval produces
// false-positive dead-agent declarations under ordinary scheduling
// jitter. It also requires DataDir and a non-zero MaxAttempts, and fills
// in defaults for PolicySelectRetries and BottleneckAge when they are
// left zero, so it takes a pointer receiver deliberately.
func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrContractViolation)
	}
	if c.HeartbeatInterval > 0 && c.AgentLivenessWindow < 3*c.HeartbeatInterval {
		return fmt.Errorf("%w: agent_liveness_window (%s) must be >= 3x heartbeat_interval (%s)",
			ErrContractViolation, c.AgentLivenessWindow, c.HeartbeatInterval)
	}
	if c.MaxAttempts == 0 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrContractViolation)
	}
	if c.PolicySelectRetries <= 0 {
		c.PolicySelectRetries = 8
	}
	if c.BottleneckAge <= 0 {
		c.BottleneckAge = 60 * time.Second
	}
	return nil
}
