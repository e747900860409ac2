package types

// PriorityCounts holds per-priority counts.
type PriorityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Stats aggregates a collection of todos. It is derived and never persisted.
type Stats struct {
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Pending    int            `json:"pending"`
	ByPriority PriorityCounts `json:"byPriority"`
}

// ComputeStats counts todos by status and priority.
func ComputeStats(todos []Todo) Stats {
	var s Stats
	for _, t := range todos {
		s.Total++
		switch t.Status {
		case StatusCompleted:
			s.Completed++
		case StatusPending:
			s.Pending++
		}
		switch t.Priority {
		case PriorityHigh:
			s.ByPriority.High++
		case PriorityMedium:
			s.ByPriority.Medium++
		case PriorityLow:
			s.ByPriority.Low++
		}
	}
	return s
}
