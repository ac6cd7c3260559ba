package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/interval"
)

// BoardReport is a point-in-time view of the board.
type BoardReport struct {
	ID             string               `json:"id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	Policy         string               `json:"policy"`
	Testing        bool                 `json:"testing"`
	Lists          []ListSummary        `json:"lists"`
	Participants   []ParticipantSummary `json:"participants"`
	TotalActive    int                  `json:"total_active"`
	TotalCompleted int                  `json:"total_completed"`
	Counters       map[string]int       `json:"counters,omitempty"`
}

// ListSummary describes one list.
type ListSummary struct {
	ID           string         `json:"id"`
	Interval     string         `json:"interval"`
	Challenges   int            `json:"challenges"`
	MaxActive    int            `json:"max_active"`
	Visible      []challenge.ID `json:"visible"`
	LastRotation time.Time      `json:"last_rotation"`
	NextRotation string         `json:"next_rotation"`
}

// ActiveSummary describes one attempt.
type ActiveSummary struct {
	List      string       `json:"list"`
	Challenge challenge.ID `json:"challenge"`
	StartedAt time.Time    `json:"started_at"`
	Progress  string       `json:"progress"`
}

// ParticipantSummary describes one participant.
type ParticipantSummary struct {
	ID             string          `json:"id"`
	Active         []ActiveSummary `json:"active"`
	Completed      int             `json:"completed"`
	PendingRewards int             `json:"pending_rewards"`
}

// Build snapshots e. counters may be nil.
func Build(e *engine.Engine, counters map[string]int) *BoardReport {
	now := e.Now()
	mode := e.Mode()
	r := &BoardReport{
		ID:          fmt.Sprintf("board_%s", now.Format("20060102_150405")),
		GeneratedAt: now,
		Policy:      e.Policy().String(),
		Testing:     mode.Testing,
		Counters:    counters,
	}

	for _, l := range e.Lists() {
		def := l.Definition()
		every := def.RotationInterval
		if interval.IsDisabled(every) {
			every = interval.Literal
		}
		r.Lists = append(r.Lists, ListSummary{
			ID:           l.ID(),
			Interval:     every,
			Challenges:   def.Len(),
			MaxActive:    l.MaxActive(),
			Visible:      l.VisibleIDs(),
			LastRotation: l.LastRotation(),
			NextRotation: l.TimeUntilRotationFormatted(),
		})
	}

	for _, p := range e.Profiles() {
		ps := ParticipantSummary{
			ID:             p.ID(),
			Completed:      len(p.Completed()),
			PendingRewards: len(p.PendingRewards()),
		}
		for _, g := range p.AllActive() {
			ps.Active = append(ps.Active, ActiveSummary{
				List:      g.List(),
				Challenge: g.ID(),
				StartedAt: g.StartedAt(),
				Progress:  describe(g.Describe()),
			})
		}
		r.TotalActive += len(ps.Active)
		r.TotalCompleted += ps.Completed
		r.Participants = append(r.Participants, ps)
	}
	return r
}

func describe(reqs []engine.RequirementStatus) string {
	parts := make([]string, 0, len(reqs))
	for _, s := range reqs {
		parts = append(parts, s.Name+" "+s.Progress)
	}
	return strings.Join(parts, ", ")
}

// CounterNames returns the counter keys, sorted.
func (r *BoardReport) CounterNames() []string {
	names := make([]string, 0, len(r.Counters))
	for k := range r.Counters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
