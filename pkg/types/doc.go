/*
Package types defines the core data structures of loom's coordination kernel.

This package contains the five content-addressed entities the kernel
reasons about: agents, work records, work state, claim locks, and version
tokens. Every other package operates on these types by id reference; there
is no in-memory ownership graph to untangle.

# Core Types

Agent lifecycle:
  - AgentRecord: identity of a participant process
  - AgentStatus: ACTIVE, DRAINING, DEAD

Work definition and lifecycle:
  - WorkRecord: an immutable unit of pullable work
  - WorkState: the mutable lifecycle record for a WorkRecord
  - WorkLifecycleState: PENDING, ACTIVE, COMPLETED, FAILED, ABANDONED

Claim protocol:
  - ClaimLock: the on-disk artifact whose existence is the claim

Versioning:
  - VersionToken: a 64-bit monotonically increasing optimistic-concurrency
    stamp attached to every WorkState mutation

# Design Patterns

Enumeration pattern: all enums are typed string constants.

Optional fields use pointers or zero-value sentinels documented on the
field: a nil ConcurrentClaimCap means unbounded; an empty LastFailureReason
means no failure has been recorded yet.

Every JSON-persisted type carries a SchemaVersion field so a reader can
fail closed on a record written by a newer, incompatible version of the
kernel rather than silently misinterpreting unknown fields.

# Thread Safety

Types in this package carry no synchronization of their own: callers must
treat a *WorkState or *AgentRecord as an immutable snapshot once read, and
route every mutation through pkg/storage so the temp+rename and CAS
discipline described in pkg/storage's documentation applies uniformly.
*/
package types
