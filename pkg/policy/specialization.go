package policy

// SpecializationMatch filters candidates to those whose task type
// intersects the agent's specialization set, then applies FIFOPriority
// among the survivors. If none match, it falls back to unfiltered
// FIFOPriority unless the agent is declared a strict specialist, in
// which case no candidate is offered.
type SpecializationMatch struct{}

func (SpecializationMatch) Select(candidates []Candidate, agent Agent) (string, bool) {
	if len(agent.Specialization) == 0 {
		return FIFOPriority{}.Select(candidates, agent)
	}

	want := make(map[string]struct{}, len(agent.Specialization))
	for _, s := range agent.Specialization {
		want[s] = struct{}{}
	}

	matched := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := want[c.TaskType]; ok {
			matched = append(matched, c)
		}
	}

	if len(matched) > 0 {
		return FIFOPriority{}.Select(matched, agent)
	}
	if agent.StrictSpecialist {
		return "", false
	}
	return FIFOPriority{}.Select(candidates, agent)
}
