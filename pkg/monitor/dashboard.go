package monitor

import (
	"sort"
	"sync"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
)

// ListState is the dashboard view of one list.
type ListState struct {
	ID           string    `json:"id"`
	Rotations    int       `json:"rotations"`
	LastRotation time.Time `json:"last_rotation,omitempty"`
	Started      int       `json:"started"`
	Completed    int       `json:"completed"`
	Cancelled    int       `json:"cancelled"`
	Active       int       `json:"active"`
}

// ParticipantState is the dashboard view of one participant.
type ParticipantState struct {
	ID        string         `json:"id"`
	Active    []challenge.ID `json:"active"`
	Completed int            `json:"completed"`
	LastSeen  time.Time      `json:"last_seen"`
}

// DashboardSummary holds aggregate stats for the dashboard.
type DashboardSummary struct {
	Lists          int     `json:"lists"`
	Participants   int     `json:"participants"`
	Active         int     `json:"active"`
	Completed      int     `json:"completed"`
	Cancelled      int     `json:"cancelled"`
	CompletionRate float64 `json:"completion_rate"`
	Uptime         string  `json:"uptime"`
}

// DashboardSnapshot is a point-in-time copy of a Dashboard.
type DashboardSnapshot struct {
	StartTime    time.Time                   `json:"start_time"`
	Lists        map[string]ListState        `json:"lists"`
	Participants map[string]ParticipantState `json:"participants"`
	Summary      DashboardSummary            `json:"summary"`
}

// Dashboard folds engine events into per-list and
// per-participant state.
type Dashboard struct {
	mu           sync.RWMutex
	startTime    time.Time
	lists        map[string]*ListState
	participants map[string]*ParticipantState
}

// NewDashboard creates an empty dashboard.
func NewDashboard() *Dashboard {
	return &Dashboard{
		startTime:    time.Now(),
		lists:        make(map[string]*ListState),
		participants: make(map[string]*ParticipantState),
	}
}

func (d *Dashboard) list(id string) *ListState {
	l, ok := d.lists[id]
	if !ok {
		l = &ListState{ID: id}
		d.lists[id] = l
	}
	return l
}

func (d *Dashboard) participant(id string) *ParticipantState {
	p, ok := d.participants[id]
	if !ok {
		p = &ParticipantState{ID: id}
		d.participants[id] = p
	}
	return p
}

// UpdateFromEvent applies ev.
func (d *Dashboard) UpdateFromEvent(ev engine.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var p *ParticipantState
	if ev.Participant != "" {
		p = d.participant(ev.Participant)
		p.LastSeen = ev.Time
	}

	switch ev.Kind {
	case engine.EventRotated:
		l := d.list(ev.List)
		l.Rotations++
		l.LastRotation = ev.Time
	case engine.EventStarted:
		l := d.list(ev.List)
		l.Started++
		l.Active++
		if p != nil {
			p.Active = append(p.Active, ev.Challenge)
		}
	case engine.EventCompleted:
		l := d.list(ev.List)
		l.Completed++
		l.Active--
		if p != nil {
			p.Completed++
			p.Active = without(p.Active, ev.Challenge)
		}
	case engine.EventCancelled:
		l := d.list(ev.List)
		l.Cancelled++
		l.Active--
		if p != nil {
			p.Active = without(p.Active, ev.Challenge)
		}
	case engine.EventReset:
		if p != nil {
			p.Completed = 0
		}
	}
}

func without(ids []challenge.ID, id challenge.ID) []challenge.ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

// Snapshot returns a copy of the current dashboard state.
func (d *Dashboard) Snapshot() DashboardSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := DashboardSnapshot{
		StartTime:    d.startTime,
		Lists:        make(map[string]ListState, len(d.lists)),
		Participants: make(map[string]ParticipantState, len(d.participants)),
	}
	s := DashboardSummary{
		Lists:        len(d.lists),
		Participants: len(d.participants),
	}
	for id, l := range d.lists {
		snap.Lists[id] = *l
		s.Active += l.Active
		s.Completed += l.Completed
		s.Cancelled += l.Cancelled
	}
	for id, p := range d.participants {
		cp := *p
		cp.Active = append([]challenge.ID(nil), p.Active...)
		snap.Participants[id] = cp
	}
	if finished := s.Completed + s.Cancelled; finished > 0 {
		s.CompletionRate = float64(s.Completed) / float64(finished) * 100
	}
	s.Uptime = time.Since(d.startTime).Round(time.Second).String()
	snap.Summary = s
	return snap
}

// ListIDs returns the ids of every list seen, sorted.
func (d *Dashboard) ListIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.lists))
	for id := range d.lists {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildDashboard replays every event retained by collector.
func BuildDashboard(collector *EventCollector) *Dashboard {
	d := NewDashboard()
	for _, ev := range collector.Events() {
		d.UpdateFromEvent(ev)
	}
	return d
}
