package telemetry

import "time"

// EventName identifies a stable telemetry event point. Names never change
// once shipped; the bag of Attrs attached to an event may grow.
type EventName string

const (
	ClaimAttempt     EventName = "claim.attempt"
	ClaimWon         EventName = "claim.won"
	ClaimLost        EventName = "claim.lost"
	ClaimReleased    EventName = "claim.released"
	StateTransition  EventName = "state.transition"
	SweepBegin       EventName = "janitor.sweep.begin"
	SweepEnd         EventName = "janitor.sweep.end"
	HealthSnapshot   EventName = "health.snapshot"
	PolicyViolation  EventName = "policy.contract_violation"
)

// Event is the typed attribute bag passed to every Hook. Every field
// except Name is optional; the kernel and janitor leave Timestamp zero. A
// hook must ignore fields it does not understand rather than failing.
type Event struct {
	Name      EventName
	Timestamp time.Time
	AgentID   string
	WorkID    string
	ClaimID   string
	Policy    string
	Sweep     string
	Attrs     map[string]string
}

// Hook receives events fired by the kernel and janitor. Implementations
// must not block meaningfully — the kernel calls hooks synchronously on
// its own goroutine.
type Hook interface {
	Emit(Event)
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(Event)

func (f HookFunc) Emit(e Event) { f(e) }

// Noop discards every event. Used when a caller wires no telemetry.
var Noop Hook = HookFunc(func(Event) {})

// Multi fans a single event out to multiple hooks, in order. A panic in
// one hook is not recovered here; callers composing hooks that might
// panic should wrap their own HookFunc.
func Multi(hooks ...Hook) Hook {
	return HookFunc(func(e Event) {
		for _, h := range hooks {
			if h != nil {
				h.Emit(e)
			}
		}
	})
}
