package storage

import (
	"time"

	"github.com/cuemby/loom/pkg/types"
)

// Store is the only component permitted to touch the data directory
// directly. Every mutating call is a write-to-temp-then-rename; lock
// creation additionally relies on the filesystem's atomic "create new
// file, fail if it exists" semantic, which is what gives the kernel's
// claim protocol its uniqueness guarantee — not timestamp precision.
type Store interface {
	// Agents
	PutAgent(agent *types.AgentRecord) error
	GetAgent(id string) (*types.AgentRecord, error)
	ListAgents() ([]*types.AgentRecord, error)
	RemoveAgent(id string) error

	// Work
	PutWork(record *types.WorkRecord, state *types.WorkState) error
	GetWorkRecord(id string) (*types.WorkRecord, error)
	GetWorkState(id string) (*types.WorkState, error)
	ListWorkStates() ([]*types.WorkState, error)
	// CASWorkState writes newState only if the on-disk version still
	// equals expectedVersion, returning ErrVersionConflict otherwise.
	CASWorkState(id string, expectedVersion uint64, newState *types.WorkState) error

	// Locks
	CreateLockExclusive(workID string, lock *types.ClaimLock) error
	// DeleteLock removes the lock for workID if its recorded owner equals
	// expectedOwner, returning ErrNotHeld or ErrOwnerMismatch otherwise.
	DeleteLock(workID string, expectedOwner string) error
	ReadLock(workID string) (*types.ClaimLock, error)
	ScanLocks() ([]*types.ClaimLock, error)

	// Retention
	ArchiveWork(workID string, asOf time.Time) error

	// Halt
	IsHalted() bool

	// Diagnostics
	DiskFree() (uint64, error)

	Close() error
}
