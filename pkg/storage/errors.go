package storage

import "errors"

// Sentinel errors returned by Store operations. Callers compare with
// errors.Is; pkg/kernel maps these onto its own closed error taxonomy.
var (
	// ErrNotFound means a referenced agent or work id does not exist on disk.
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists means an attempt to create an entity whose id is
	// already taken.
	ErrAlreadyExists = errors.New("storage: already exists")

	// ErrVersionConflict means CASWorkState's expected version no longer
	// matches what is on disk.
	ErrVersionConflict = errors.New("storage: version conflict")

	// ErrAlreadyHeld means CreateLockExclusive found a lock file already
	// present for the work id.
	ErrAlreadyHeld = errors.New("storage: lock already held")

	// ErrNotHeld means DeleteLock found no lock file for the work id.
	ErrNotHeld = errors.New("storage: lock not held")

	// ErrOwnerMismatch means DeleteLock was asked to delete a lock owned
	// by a different agent than the expected owner.
	ErrOwnerMismatch = errors.New("storage: lock owner mismatch")

	// ErrUnsupportedSchema means a record on disk carries a schema_version
	// newer than this build understands; the caller must fail closed.
	ErrUnsupportedSchema = errors.New("storage: unsupported schema version")

	// ErrHalted means the EMERGENCY_HALT marker is present in the data
	// directory.
	ErrHalted = errors.New("storage: emergency halt marker present")
)
