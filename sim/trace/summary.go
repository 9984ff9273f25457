package trace

// SetSummary aggregates the records that targeted one set.
type SetSummary struct {
	Accesses  int
	Hits      int
	Misses    int
	Evictions int
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalAccesses int
	Hits          int
	Misses        int
	Evictions     int
	UniqueSets    int
	HottestSet    uint64 // set with the most accesses; lowest index on ties
	PerSet        map[uint64]SetSummary
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		PerSet: make(map[uint64]SetSummary),
	}
	if st == nil {
		return summary
	}

	summary.TotalAccesses = len(st.Accesses)
	for _, a := range st.Accesses {
		s := summary.PerSet[a.SetIndex]
		s.Accesses++
		switch a.Outcome {
		case OutcomeHit:
			summary.Hits++
			s.Hits++
		case OutcomeMiss:
			summary.Misses++
			s.Misses++
		case OutcomeMissEviction:
			summary.Misses++
			summary.Evictions++
			s.Misses++
			s.Evictions++
		}
		summary.PerSet[a.SetIndex] = s
	}

	summary.UniqueSets = len(summary.PerSet)
	best := -1
	for idx, s := range summary.PerSet {
		if s.Accesses > best || (s.Accesses == best && idx < summary.HottestSet) {
			best = s.Accesses
			summary.HottestSet = idx
		}
	}

	return summary
}
