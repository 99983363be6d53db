package scanner

import (
	"sync"

	"cloudmon/internal/model"
)

// stats tracks per-rule found/added counters for one channel pass. Push
// tasks run concurrently within a batch, so all updates go through the
// mutex.
type stats struct {
	mu       sync.Mutex
	rules    []model.RuleStats
	priority model.RuleStats
}

func newStats(ruleCount int) *stats {
	return &stats{rules: make([]model.RuleStats, ruleCount)}
}

func (s *stats) addFound(idx int, priority bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[idx].Found++
	if priority {
		s.priority.Found++
	}
}

func (s *stats) addAdded(idx int, priority bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[idx].Added++
	if priority {
		s.priority.Added++
	}
}

func (s *stats) snapshot() model.StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := model.StatsSnapshot{
		Rules:    make([]model.RuleStats, len(s.rules)),
		Priority: s.priority,
	}
	copy(out.Rules, s.rules)
	return out
}
