package types

import "time"

// CurrentSchemaVersion is the schema version stamped into every record this
// build of the kernel writes. Readers reject records with a higher version.
const CurrentSchemaVersion = 1

// AgentStatus is the liveness status of a registered agent.
type AgentStatus string

const (
	AgentActive   AgentStatus = "ACTIVE"
	AgentDraining AgentStatus = "DRAINING"
	AgentDead     AgentStatus = "DEAD"
)

// AgentRecord is the identity of a participant process. It is created by
// Register, mutated only via Heartbeat or UpdateCapacity, and removed by
// Unregister or by the janitor once declared dead.
type AgentRecord struct {
	SchemaVersion int `json:"schema_version"`

	ID       string  `json:"id"`
	Role     string  `json:"role"`
	Capacity float64 `json:"capacity"` // share of compute in [0,1]

	Specialization []string `json:"specialization,omitempty"`

	// StrictSpecialist, when true, means the agent will only ever be
	// offered work matching Specialization: the selection policy must not
	// fall back to unfiltered candidates for it.
	StrictSpecialist bool `json:"strict_specialist,omitempty"`

	// ConcurrentClaimCap is the agent's concurrent-claim cap. nil means
	// unbounded.
	ConcurrentClaimCap *uint32 `json:"concurrent_claim_cap,omitempty"`

	RegisteredAt  time.Time   `json:"registered_at"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	Status        AgentStatus `json:"status"`
}

// WorkLifecycleState is a WorkState's position in the lifecycle state
// machine described in spec §4.4.
type WorkLifecycleState string

const (
	WorkPending   WorkLifecycleState = "PENDING"
	WorkActive    WorkLifecycleState = "ACTIVE"
	WorkCompleted WorkLifecycleState = "COMPLETED"
	WorkFailed    WorkLifecycleState = "FAILED"
	WorkAbandoned WorkLifecycleState = "ABANDONED"
)

// Terminal reports whether s admits no further transitions.
func (s WorkLifecycleState) Terminal() bool {
	switch s {
	case WorkCompleted, WorkFailed, WorkAbandoned:
		return true
	default:
		return false
	}
}

// WorkRecord is a unit of pullable work. It is immutable after creation;
// mutable lifecycle data lives separately in WorkState so that the two can
// be updated independently and atomically.
type WorkRecord struct {
	SchemaVersion int `json:"schema_version"`

	ID       string `json:"id"`
	TaskType string `json:"task_type"`
	Priority int    `json:"priority"` // 1..=100

	EstimatedDuration time.Duration `json:"estimated_duration"`

	// PayloadRef is an opaque reference to the work's payload. The kernel
	// never transports or interprets it.
	PayloadRef string `json:"payload_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// WorkState is the mutable, versioned lifecycle record for a WorkRecord.
type WorkState struct {
	SchemaVersion int `json:"schema_version"`

	WorkID  string             `json:"work_id"`
	State   WorkLifecycleState `json:"state"`
	Version uint64             `json:"version"`

	// Holder and ClaimTS are populated only while State == WorkActive.
	Holder  string    `json:"holder,omitempty"`
	ClaimTS time.Time `json:"claim_ts,omitempty"`

	Attempts          uint32 `json:"attempts"`
	LastFailureReason string `json:"last_failure_reason,omitempty"`

	// UpdatedAt is stamped on every transition; the retention sweep ages
	// terminal states from this timestamp rather than from CreatedAt on
	// the immutable WorkRecord.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ClaimLock is the on-disk artifact that makes a claim real: its existence
// is the claim, its absence is availability.
type ClaimLock struct {
	SchemaVersion int `json:"schema_version"`

	WorkID  string    `json:"work_id"`
	Owner   string    `json:"owner"`
	ClaimID string    `json:"claim_id"`
	ClaimTS time.Time `json:"claim_ts"`
}
