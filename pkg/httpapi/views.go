package httpapi

import (
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/interval"
)

type listView struct {
	ID                string     `json:"id"`
	Challenges        int        `json:"challenges"`
	VisibleCount      int        `json:"visible_count"`
	MaxActive         int        `json:"max_active"`
	Interval          string     `json:"interval"`
	LastRotation      *time.Time `json:"last_rotation,omitempty"`
	RemainingMillis   *int64     `json:"remaining_ms,omitempty"`
	RemainingFormatted string     `json:"remaining"`
	Visible           []string   `json:"visible"`
}

type challengeView struct {
	ID             challenge.ID       `json:"id"`
	Description    string             `json:"description,omitempty"`
	NeedsSelection bool               `json:"needs_selection"`
	Repeatable     bool               `json:"repeatable"`
	Permission     string             `json:"permission,omitempty"`
	MaxDuration    string             `json:"max_duration,omitempty"`
	Rewards        []challenge.Reward `json:"rewards,omitempty"`
}

type progressView struct {
	List            string                     `json:"list"`
	Challenge       challenge.ID               `json:"challenge"`
	Description     string                     `json:"description,omitempty"`
	NeedsSelection  bool                       `json:"needs_selection"`
	StartedAt       time.Time                  `json:"started_at"`
	RemainingMillis *int64                     `json:"remaining_ms,omitempty"`
	Requirements    []engine.RequirementStatus `json:"requirements"`
}

type completedView struct {
	List        string       `json:"list"`
	Challenge   challenge.ID `json:"challenge"`
	CompletedAt time.Time    `json:"completed_at"`
}

type replacementView struct {
	Token     string    `json:"token"`
	List      string    `json:"list"`
	Candidate string    `json:"candidate"`
	Replacing string    `json:"replacing"`
	ExpiresAt time.Time `json:"expires_at"`
}

type participantView struct {
	ID             string             `json:"id"`
	Online         bool               `json:"online"`
	Active         []progressView     `json:"active"`
	Completed      []completedView    `json:"completed"`
	PendingRewards []challenge.Reward `json:"pending_rewards"`
	Replacement    *replacementView   `json:"replacement,omitempty"`
}

type selectView struct {
	Status    string        `json:"status"`
	Progress  *progressView `json:"progress,omitempty"`
	Token     string        `json:"token,omitempty"`
	Replacing challenge.ID  `json:"replacing,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

func millis(d time.Duration) *int64 {
	if d == interval.Never {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

func newListView(l *engine.List) listView {
	def := l.Definition()
	v := listView{
		ID:                l.ID(),
		Challenges:        def.Len(),
		VisibleCount:      def.EffectiveVisible(),
		MaxActive:         l.MaxActive(),
		Interval:          def.RotationInterval,
		RemainingMillis:   millis(l.TimeUntilRotation()),
		RemainingFormatted: l.TimeUntilRotationFormatted(),
		Visible:           make([]string, 0),
	}
	if last := l.LastRotation(); !last.IsZero() {
		v.LastRotation = &last
	}
	for _, id := range l.VisibleIDs() {
		v.Visible = append(v.Visible, string(id))
	}
	return v
}

func newChallengeView(d *challenge.Definition) challengeView {
	v := challengeView{
		ID:             d.ID,
		Description:    d.Description,
		NeedsSelection: d.NeedsSelection,
		Repeatable:     d.Repeatable,
		Permission:     d.Permission,
		Rewards:        d.Rewards,
	}
	if d.MaxDuration > 0 {
		v.MaxDuration = d.MaxDuration.String()
	}
	return v
}

func newProgressView(g *engine.Progress) progressView {
	def := g.Challenge()
	return progressView{
		List:            g.List(),
		Challenge:       g.ID(),
		Description:     def.Description,
		NeedsSelection:  def.NeedsSelection,
		StartedAt:       g.StartedAt(),
		RemainingMillis: millis(g.TimeRemaining()),
		Requirements:    g.Describe(),
	}
}

func (h *handler) newParticipantView(p *engine.Profile) participantView {
	v := participantView{
		ID:             p.ID(),
		Online:         h.engine.Online(p.ID()),
		Active:         make([]progressView, 0),
		Completed:      make([]completedView, 0),
		PendingRewards: p.PendingRewards(),
	}
	if v.PendingRewards == nil {
		v.PendingRewards = make([]challenge.Reward, 0)
	}
	for _, g := range p.AllActive() {
		v.Active = append(v.Active, newProgressView(g))
	}
	for _, c := range p.Completed() {
		v.Completed = append(v.Completed, completedView{
			List: c.List, Challenge: c.Challenge, CompletedAt: c.CompletedAt,
		})
	}
	neg := h.engine.Negotiator()
	if rec, ok := neg.Get(p.ID()); ok {
		v.Replacement = &replacementView{
			Token:     rec.Token,
			List:      rec.List,
			Candidate: rec.Candidate,
			Replacing: rec.Replacing,
			ExpiresAt: rec.CreatedAt.Add(neg.Timeout()),
		}
	}
	return v
}
