/*
Package storage implements loom's on-disk state store: the only component
permitted to touch the data directory directly.

# Layout

	<data_dir>/
	  agents/<agent_id>.json
	  work/records/<work_id>.json
	  work/state/<work_id>.json
	  locks/<work_id>.lock
	  archive/<YYYY-MM-DD>/<work_id>.json
	  EMERGENCY_HALT

Every path above is part of the contract other languages' shell-generated
clients depend on bit-for-bit; FileStore must not rename or restructure it
without a schema_version bump.

# Atomicity

Every mutating write follows write-to-temp-in-the-same-directory, then
os.Rename: the filesystem never observes a torn write, because rename
within a directory on the same filesystem is atomic. Lock creation is the
one place this package relies on a different primitive:
os.OpenFile(O_CREATE|O_EXCL), which fails the second caller rather than
racing a check-then-create. That primitive, not timestamp precision, is
what gives the kernel's claim protocol its uniqueness guarantee — see
pkg/kernel's claim protocol documentation.

CASWorkState reads, compares the stored version against the caller's
expected version, and only then writes; it returns ErrVersionConflict on
mismatch rather than silently overwriting a concurrent writer's update.

# Failure model

IO errors are wrapped with fmt.Errorf("...: %w", err) and surfaced with
their kind preserved. GetAgent, GetWorkRecord and GetWorkState fail closed
with ErrUnsupportedSchema on a record whose schema_version exceeds
types.CurrentSchemaVersion. ListAgents, ListWorkStates, ReadLock and
ScanLocks do not check schema_version.
*/
package storage
