package policy

import "time"

// Candidate is the read-only view of a PENDING work item a Policy is
// allowed to see. It carries no storage handle and no pointer back into
// the kernel — a Policy implementation has no exported path to mutate
// state even if it wanted to.
type Candidate struct {
	WorkID      string
	TaskType    string
	Priority    int
	CreatedAt   time.Time
}

// Agent is the read-only view of the requesting agent passed to Select.
type Agent struct {
	ID             string
	Role           string
	Specialization []string
	StrictSpecialist bool
}

// Policy selects at most one work id from candidates for agent. It must
// not perform IO, retain candidates beyond the call, or attempt to
// mutate state; candidates is a snapshot that may already be stale by
// the time the kernel acts on the result.
type Policy interface {
	Select(candidates []Candidate, agent Agent) (workID string, ok bool)
}

// byTieBreak orders candidates by the deterministic rule
// §4.3: priority desc, creation timestamp asc, work id asc.
func byTieBreak(a, b Candidate) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.WorkID < b.WorkID
}

// best returns the index of the candidate that sorts first under
// byTieBreak, or -1 if candidates is empty.
func best(candidates []Candidate) int {
	if len(candidates) == 0 {
		return -1
	}
	winner := 0
	for i := 1; i < len(candidates); i++ {
		if byTieBreak(candidates[i], candidates[winner]) {
			winner = i
		}
	}
	return winner
}
