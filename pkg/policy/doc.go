/*
Package policy implements the Policy Layer (C5): the only place the
kernel asks a question it cannot answer itself — which PENDING work item
a requesting agent should receive next.

A Policy is a narrow, IO-free capability: Select sees an immutable
candidate slice and a read-only view of the requesting agent, and returns
at most one work id from that slice. The Candidate type carries no
storage handle and no reference to *kernel.Kernel, so a policy cannot
mutate state or call back into the kernel even if it tried — the
restriction is enforced by the type system, not by convention.

FIFOPriority and SpecializationMatch are the two built-ins
requires. Custom policies register by name through the kernel's policy
registry (RegisterPolicy / SetActivePolicy).
*/
package policy
