package metrics

import (
	"sync"
	"time"
)

// InMemoryMetrics implements EngineMetrics with counters held
// in memory. It is safe for concurrent use and backs the
// monitor dashboard.
type InMemoryMetrics struct {
	mu            sync.Mutex
	rotations     map[string]int
	completions   map[string]int
	durations     map[string][]time.Duration
	cancellations map[string]int
	replacements  map[string]int
	rewardFails   map[string]int
}

// NewInMemoryMetrics creates an empty InMemoryMetrics.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		rotations:     make(map[string]int),
		completions:   make(map[string]int),
		durations:     make(map[string][]time.Duration),
		cancellations: make(map[string]int),
		replacements:  make(map[string]int),
		rewardFails:   make(map[string]int),
	}
}

func (m *InMemoryMetrics) RecordRotation(list, policy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotations[list+":"+policy]++
}

func (m *InMemoryMetrics) RecordCompletion(
	list, challengeID string, took time.Duration,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := list + ":" + challengeID
	m.completions[key]++
	m.durations[key] = append(m.durations[key], took)
}

func (m *InMemoryMetrics) RecordCancellation(list, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations[list+":"+reason]++
}

func (m *InMemoryMetrics) RecordReplacement(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replacements[outcome]++
}

func (m *InMemoryMetrics) RecordRewardFailure(rewardType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewardFails[rewardType]++
}

// RotationCount returns rotations of list under policy.
func (m *InMemoryMetrics) RotationCount(list, policy string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotations[list+":"+policy]
}

// CompletionCount returns completions of a challenge.
func (m *InMemoryMetrics) CompletionCount(list, challengeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completions[list+":"+challengeID]
}

// MeanCompletionTime returns the average attempt duration of
// a challenge, or zero when it never completed.
func (m *InMemoryMetrics) MeanCompletionTime(
	list, challengeID string,
) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds := m.durations[list+":"+challengeID]
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

// CancellationCount returns cancellations in list for reason.
func (m *InMemoryMetrics) CancellationCount(list, reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancellations[list+":"+reason]
}

// ReplacementCount returns how often outcome occurred.
func (m *InMemoryMetrics) ReplacementCount(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replacements[outcome]
}

// RewardFailureCount returns failed dispatches of rewardType.
func (m *InMemoryMetrics) RewardFailureCount(rewardType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewardFails[rewardType]
}

// Counters returns a flat copy of every counter keyed by
// "<family>:<labels>".
func (m *InMemoryMetrics) Counters() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int)
	families := []struct {
		name string
		data map[string]int
	}{
		{"rotations", m.rotations},
		{"completions", m.completions},
		{"cancellations", m.cancellations},
		{"replacements", m.replacements},
		{"reward_failures", m.rewardFails},
	}
	for _, f := range families {
		for k, v := range f.data {
			out[f.name+":"+k] = v
		}
	}
	return out
}
