// Package monitor watches engine events: it keeps a bounded
// history with aggregate counts, folds events into a dashboard,
// and streams them to websocket clients.
package monitor

import (
	"sync"
	"time"

	"digital.vasic.challengeboard/pkg/engine"
)

// DefaultHistory is how many events a collector keeps.
const DefaultHistory = 1024

// EventCollector captures engine events. It implements
// engine.Observer.
type EventCollector struct {
	mu       sync.RWMutex
	events   []engine.Event
	limit    int
	handlers []func(engine.Event)
	stats    CollectorStats
}

// CollectorStats holds aggregate counts since the collector
// started or was last reset.
type CollectorStats struct {
	Total          int           `json:"total"`
	Rotations      int           `json:"rotations"`
	Started        int           `json:"started"`
	Completed      int           `json:"completed"`
	Cancelled      int           `json:"cancelled"`
	Expired        int           `json:"expired"`
	Replacements   int           `json:"replacements"`
	RewardFailures int           `json:"reward_failures"`
	StartTime      time.Time     `json:"start_time"`
	Duration       time.Duration `json:"duration"`
}

// NewEventCollector creates a collector keeping the last limit
// events. A non-positive limit means DefaultHistory.
func NewEventCollector(limit int) *EventCollector {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &EventCollector{
		events: make([]engine.Event, 0, 64),
		limit:  limit,
		stats:  CollectorStats{StartTime: time.Now()},
	}
}

// OnEvent registers a handler to be called for each event.
// Handlers run on the engine's goroutine and must not block.
func (c *EventCollector) OnEvent(handler func(engine.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Observe records ev and notifies every handler.
func (c *EventCollector) Observe(ev engine.Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	c.mu.Lock()
	if len(c.events) == c.limit {
		copy(c.events, c.events[1:])
		c.events = c.events[:len(c.events)-1]
	}
	c.events = append(c.events, ev)
	c.stats.Total++
	switch ev.Kind {
	case engine.EventRotated:
		c.stats.Rotations++
	case engine.EventStarted:
		c.stats.Started++
	case engine.EventCompleted:
		c.stats.Completed++
	case engine.EventCancelled:
		if ev.Detail == engine.ReasonExpired {
			c.stats.Expired++
		} else {
			c.stats.Cancelled++
		}
	case engine.EventReplacementResolved:
		c.stats.Replacements++
	case engine.EventRewardFailed:
		c.stats.RewardFailures++
	}
	handlers := make([]func(engine.Event), len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Events returns a copy of the retained events, oldest first.
func (c *EventCollector) Events() []engine.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]engine.Event, len(c.events))
	copy(result, c.events)
	return result
}

// Stats returns the current aggregate statistics.
func (c *EventCollector) Stats() CollectorStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Duration = time.Since(s.StartTime)
	return s
}

// Reset clears all collected events and statistics.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.stats = CollectorStats{StartTime: time.Now()}
}
