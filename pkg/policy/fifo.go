package policy

// FIFOPriority picks the candidate maximizing (priority, -creation_ts),
// stable on ties by work id — the tie-break rule applied
// directly as the whole policy.
type FIFOPriority struct{}

func (FIFOPriority) Select(candidates []Candidate, _ Agent) (string, bool) {
	i := best(candidates)
	if i < 0 {
		return "", false
	}
	return candidates[i].WorkID, true
}
