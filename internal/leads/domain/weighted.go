package domain

const (
	MinAgentWeight = 1
	MaxAgentWeight = 10
)

// Candidate is an agent eligible for round-robin selection.
type Candidate[ID comparable] struct {
	ID     ID
	Weight int
}

// ClampWeight bounds w to [MinAgentWeight, MaxAgentWeight].
func ClampWeight(w int) int {
	if w < MinAgentWeight {
		return MinAgentWeight
	}
	if w > MaxAgentWeight {
		return MaxAgentWeight
	}
	return w
}

// BuildWeightedList repeats every candidate id ClampWeight(weight) times,
// preserving candidate order, so that linear indexing selects each agent in
// proportion to its weight.
func BuildWeightedList[ID comparable](candidates []Candidate[ID]) []ID {
	total := 0
	for _, c := range candidates {
		total += ClampWeight(c.Weight)
	}
	list := make([]ID, 0, total)
	for _, c := range candidates {
		for i := 0; i < ClampWeight(c.Weight); i++ {
			list = append(list, c.ID)
		}
	}
	return list
}

// PointerIndex maps a round-robin pointer onto a list of length n.
// Negative pointers wrap like positive ones. n must be positive.
func PointerIndex(pointer int64, n int) int {
	idx := pointer % int64(n)
	if idx < 0 {
		idx += int64(n)
	}
	return int(idx)
}

// SelectAt returns the entry of list chosen by pointer.
func SelectAt[ID comparable](list []ID, pointer int64) (ID, bool) {
	var zero ID
	if len(list) == 0 {
		return zero, false
	}
	return list[PointerIndex(pointer, len(list))], true
}
