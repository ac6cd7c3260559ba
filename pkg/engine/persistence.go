package engine

import (
	"context"
	"fmt"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/store"
)

// Snapshot captures every profile and list rotation in the
// form the store persists. Attempts whose state cannot be
// serialized are logged and left out.
func (e *Engine) Snapshot() ([]store.ProfileRecord, []store.RotationRecord) {
	profiles := make([]store.ProfileRecord, 0)
	for _, p := range e.Profiles() {
		profiles = append(profiles, e.profileRecord(p))
	}

	lists := e.Lists()
	rotations := make([]store.RotationRecord, 0, len(lists))
	for _, l := range lists {
		ids := l.VisibleIDs()
		visible := make([]string, len(ids))
		for i, id := range ids {
			visible[i] = string(id)
		}
		rotations = append(rotations, store.RotationRecord{
			List:         l.ID(),
			Visible:      visible,
			LastRotation: l.LastRotation(),
		})
	}
	return profiles, rotations
}

func (e *Engine) profileRecord(p *Profile) store.ProfileRecord {
	rec := store.ProfileRecord{Participant: p.id}
	for _, g := range p.AllActive() {
		pr, err := g.record()
		if err != nil {
			e.logger.Warn("progress not saved",
				logging.ParticipantField(p.id), logging.ErrorField(err),
			)
			continue
		}
		rec.Active = append(rec.Active, pr)
	}
	for _, c := range p.Completed() {
		rec.Completed = append(rec.Completed, store.CompletedRecord{
			List:        c.List,
			Challenge:   string(c.Challenge),
			CompletedAt: c.CompletedAt,
		})
	}
	rec.PendingRewards = p.PendingRewards()
	return rec
}

// Save writes a snapshot to st.
func (e *Engine) Save(ctx context.Context, st store.Store) error {
	profiles, rotations := e.Snapshot()
	if err := st.SaveRotations(ctx, rotations); err != nil {
		return fmt.Errorf("save rotations: %w", err)
	}
	if err := st.SaveProfiles(ctx, profiles); err != nil {
		return fmt.Errorf("save profiles: %w", err)
	}
	e.logger.Debug("state saved",
		logging.IntField("profiles", len(profiles)),
		logging.IntField("lists", len(rotations)),
	)
	return nil
}

// Restore loads saved state with rotation checks suspended.
// Profiles come back first so that a fresh rotation keeps every
// restored attempt visible. A list whose saved subset is missing,
// unreadable or no longer matches its pool gets a fresh rotation.
// Attempts at challenges that left their pool are dropped.
func (e *Engine) Restore(ctx context.Context, st store.Store) error {
	return e.Suspend(func() error {
		profiles, perr := st.LoadProfiles(ctx)
		if perr == nil {
			for _, rec := range profiles {
				e.restoreProfile(rec)
			}
		}

		rotations, err := st.LoadRotations(ctx)
		if err != nil {
			e.logger.Warn("rotation state not restored, rotating afresh",
				logging.ErrorField(err),
			)
			for _, l := range e.Lists() {
				l.restoreRotation()
			}
		} else {
			e.restoreRotations(rotations)
		}

		if perr != nil {
			return fmt.Errorf("load profiles: %w", perr)
		}
		e.logger.Info("state restored",
			logging.IntField("profiles", len(profiles)),
			logging.IntField("lists", len(rotations)),
		)
		return nil
	})
}

func (e *Engine) restoreRotations(records []store.RotationRecord) {
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		l, err := e.List(rec.List)
		if err != nil || seen[rec.List] {
			continue
		}
		seen[rec.List] = true
		ids := l.keepValid(rec.Visible)
		if len(ids) == 0 || rec.LastRotation.IsZero() {
			l.restoreRotation()
			continue
		}
		l.setVisible(ids, rec.LastRotation)
	}
	for _, l := range e.Lists() {
		if !seen[l.ID()] {
			l.restoreRotation()
		}
	}
}

// keepValid filters saved ids to the current pool, dropping
// duplicates and capping at the visible count.
func (l *List) keepValid(saved []string) []challenge.ID {
	def := l.Definition()
	n := def.EffectiveVisible()
	seen := make(map[challenge.ID]bool, len(saved))
	out := make([]challenge.ID, 0, n)
	for _, s := range saved {
		id := challenge.ID(s)
		if len(out) == n {
			break
		}
		if _, ok := def.Challenge(id); !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (e *Engine) restoreProfile(rec store.ProfileRecord) {
	p := e.GetOrCreateProfile(rec.Participant)

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ar := range rec.Active {
		l, err := e.List(ar.List)
		if err != nil {
			continue
		}
		id := challenge.ID(ar.Challenge)
		def, ok := l.Challenge(id)
		if !ok || slotIndex(p.active[ar.List], id) >= 0 ||
			len(p.active[ar.List]) >= l.MaxActive() {
			e.logger.Warn("saved progress dropped",
				logging.ParticipantField(p.id),
				logging.ListField(ar.List),
				logging.ChallengeField(ar.Challenge),
			)
			continue
		}
		g := newProgress(p, l, def, ar.StartedAt)
		if err := g.restoreStates(ar.Requirements); err != nil {
			e.logger.Warn("saved progress reset",
				logging.ParticipantField(p.id),
				logging.ChallengeField(ar.Challenge),
				logging.ErrorField(err),
			)
			g = newProgress(p, l, def, ar.StartedAt)
		}
		p.active[ar.List] = append(p.active[ar.List], g)
	}

	for _, c := range rec.Completed {
		id := challenge.ID(c.Challenge)
		if _, done := p.completionLocked(c.List, id); done {
			continue
		}
		p.completed = append(p.completed, CompletedChallenge{
			List: c.List, Challenge: id, CompletedAt: c.CompletedAt,
		})
	}
	p.pending = append(p.pending, rec.PendingRewards...)
}
