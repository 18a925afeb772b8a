/*
Package telemetry implements the instrumentation-hooks contract: a typed
event bag dispatched by pkg/kernel and pkg/janitor at the moments that
matter for operators (claim attempt, claim success/loss, state transition,
janitor sweep begin/end, health snapshot). The sink is injected and
replaceable; callers that want no telemetry pass Noop. DefaultSink wires
event names to pkg/metrics counters and pkg/log lines, the same
two outputs every background loop in this codebase pairs.
*/
package telemetry
