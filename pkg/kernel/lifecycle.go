package kernel

import (
	"fmt"
	"time"

	"github.com/cuemby/loom/pkg/types"
)

// eventKind names the five transitions of the work lifecycle, plus the
// terminal-sink rule enforced uniformly for every kind.
type eventKind string

const (
	eventClaim    eventKind = "claim"
	eventComplete eventKind = "complete"
	eventFail     eventKind = "fail"
	eventAbandon  eventKind = "abandon"
	eventTimeout  eventKind = "timeout"
)

// lifecycleEvent carries the data a transition needs beyond the current
// WorkState. Not every field applies to every kind.
type lifecycleEvent struct {
	kind      eventKind
	holder    string
	now       time.Time
	reason    string
	retriable bool
}

// transition is the pure state-machine function backing the work lifecycle's
// diagram. It never touches storage; callers are responsible for the
// surrounding CAS. Version, SchemaVersion, and WorkID are left for the
// caller (storage.CASWorkState) to stamp.
func transition(current types.WorkState, ev lifecycleEvent, maxAttempts uint32) (types.WorkState, error) {
	if current.State.Terminal() {
		return types.WorkState{}, fmt.Errorf("%w: %s is terminal", ErrInvalidState, current.State)
	}

	next := current
	next.UpdatedAt = ev.now

	switch ev.kind {
	case eventClaim:
		if current.State != types.WorkPending {
			return types.WorkState{}, fmt.Errorf("%w: claim requires PENDING, got %s", ErrInvalidState, current.State)
		}
		next.State = types.WorkActive
		next.Holder = ev.holder
		next.ClaimTS = ev.now
		next.Attempts = current.Attempts + 1
		return next, nil

	case eventComplete:
		if current.State != types.WorkActive {
			return types.WorkState{}, fmt.Errorf("%w: complete requires ACTIVE, got %s", ErrInvalidState, current.State)
		}
		next.State = types.WorkCompleted
		next.Holder = ""
		next.ClaimTS = time.Time{}
		return next, nil

	case eventFail:
		if current.State != types.WorkActive {
			return types.WorkState{}, fmt.Errorf("%w: fail requires ACTIVE, got %s", ErrInvalidState, current.State)
		}
		next.LastFailureReason = ev.reason
		next.Holder = ""
		next.ClaimTS = time.Time{}
		if ev.retriable && current.Attempts < maxAttempts {
			next.State = types.WorkPending
		} else {
			next.State = types.WorkFailed
		}
		return next, nil

	case eventAbandon:
		if current.State != types.WorkActive {
			return types.WorkState{}, fmt.Errorf("%w: abandon requires ACTIVE, got %s", ErrInvalidState, current.State)
		}
		next.State = types.WorkPending
		next.Holder = ""
		next.ClaimTS = time.Time{}
		// Attempt count unchanged: the agent voluntarily gave up the
		// work without it counting as a failed attempt.
		return next, nil

	case eventTimeout:
		if current.State != types.WorkActive {
			return types.WorkState{}, fmt.Errorf("%w: timeout requires ACTIVE, got %s", ErrInvalidState, current.State)
		}
		next.Holder = ""
		next.ClaimTS = time.Time{}
		if current.Attempts < maxAttempts {
			next.State = types.WorkPending
		} else {
			next.State = types.WorkAbandoned
		}
		return next, nil

	default:
		return types.WorkState{}, fmt.Errorf("%w: unknown event kind %q", ErrContractViolation, ev.kind)
	}
}
