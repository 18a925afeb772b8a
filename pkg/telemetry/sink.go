package telemetry

import (
	"github.com/cuemby/loom/pkg/log"
	"github.com/cuemby/loom/pkg/metrics"
)

// DefaultSink returns the Hook wired into cmd/loomctl:
// claim outcomes and policy violations update pkg/metrics counters, and
// every event is logged at debug level with its attributes attached.
func DefaultSink() Hook {
	return HookFunc(func(e Event) {
		logEvent(e)

		switch e.Name {
		case ClaimAttempt:
			// counted implicitly by claim.won + claim.lost; no separate counter
		case ClaimWon:
			metrics.ClaimAttemptsTotal.WithLabelValues("won").Inc()
		case ClaimLost:
			metrics.ClaimAttemptsTotal.WithLabelValues("lost").Inc()
		case ClaimReleased:
			// hold duration is observed by the kernel directly, where claim_ts is in scope
		case PolicyViolation:
			metrics.PolicyRejectionsTotal.WithLabelValues(e.Policy).Inc()
		}
	})
}

func logEvent(e Event) {
	logger := log.WithComponent("telemetry")
	evt := logger.Debug().Str("event", string(e.Name))
	if e.AgentID != "" {
		evt = evt.Str("agent_id", e.AgentID)
	}
	if e.WorkID != "" {
		evt = evt.Str("work_id", e.WorkID)
	}
	if e.ClaimID != "" {
		evt = evt.Str("claim_id", e.ClaimID)
	}
	if e.Policy != "" {
		evt = evt.Str("policy", e.Policy)
	}
	if e.Sweep != "" {
		evt = evt.Str("sweep", e.Sweep)
	}
	for k, v := range e.Attrs {
		evt = evt.Str(k, v)
	}
	evt.Msg(string(e.Name))
}
