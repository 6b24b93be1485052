package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-etl/internal/weather"
)

var (
	// ErrNotFound is returned when no run matches the query.
	ErrNotFound = errors.New("no weather runs recorded")
)

// MemoryStore is a concurrency-safe in-memory run history.
type MemoryStore struct {
	mu   sync.RWMutex
	runs []weather.RunResult // ordered by StartedAt ascending

	// retention configuration
	maxHistory int           // max number of runs kept
	maxAge     time.Duration // optional max age for runs
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveRun appends a run and enforces retention.
func (s *MemoryStore) SaveRun(run weather.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep order by start time; runs normally arrive in order.
	i := len(s.runs)
	for i > 0 && s.runs[i-1].StartedAt.After(run.StartedAt) {
		i--
	}
	s.runs = append(s.runs, weather.RunResult{})
	copy(s.runs[i+1:], s.runs[i:])
	s.runs[i] = run

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.runs) > s.maxHistory {
		over := len(s.runs) - s.maxHistory
		s.runs = s.runs[over:]
	}

	// Enforce retention by age, always keeping the newest run.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.runs)-1; i++ {
			if !s.runs[i].StartedAt.Before(cutoff) {
				break
			}
		}
		s.runs = s.runs[i:]
	}
	return nil
}

// GetLatest returns the most recent run.
func (s *MemoryStore) GetLatest() (weather.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.runs) == 0 {
		return weather.RunResult{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

// GetRange returns all runs started between from and to (inclusive).
func (s *MemoryStore) GetRange(from, to time.Time) ([]weather.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.RunResult
	for _, run := range s.runs {
		if !run.StartedAt.Before(from) && !run.StartedAt.After(to) {
			result = append(result, run)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
