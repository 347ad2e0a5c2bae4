package jobs

import "time"

// JobStatus is a read-only view of one registered job.
type JobStatus struct {
	Name     string
	Kind     string
	Schedule string
	Armed    bool
	NextRun  time.Time // cron jobs only; zero for intervals
}

// Snapshot reports every registered job and whether its slot is armed.
func (s *Service) Snapshot() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.entries))
	now := s.now()
	for _, e := range s.entries {
		st := JobStatus{
			Name:     e.def.Name,
			Kind:     e.spec.Kind.String(),
			Schedule: e.def.Schedule,
			Armed:    e.slot.Armed(),
		}
		if e.spec.Kind == SpecCron {
			st.NextRun = e.spec.Sched.Next(now)
		}
		out = append(out, st)
	}
	return out
}

// History returns a copy of the in-memory run history, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}
