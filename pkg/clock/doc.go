/*
Package clock provides loom's identity and time primitives: a monotonic
instant source, a collision-resistant id generator for agents, work items,
and claims, and version-token issuance for optimistic concurrency.

None of the three primitives may block or fail in normal operation, and
none relies on synchronized wall clocks across machines — timestamps here
are for ordering and diagnostics, not for the claim-uniqueness guarantee,
which comes from the filesystem's exclusive-create semantics in
pkg/storage.
*/
package clock
