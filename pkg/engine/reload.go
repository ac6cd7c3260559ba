package engine

import (
	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/registry"
)

// Reload swaps in a new catalog with rotation checks
// suspended. Lists keep the visible challenges still in their
// pool and are topped up in pool order; lists missing from cat
// are removed; new lists show the head of their pool. Attempts
// are rebound to the new definitions, keeping requirement
// progress by name, and attempts at challenges that vanished
// are cancelled with a notice.
func (e *Engine) Reload(cat *registry.Catalog) error {
	return e.Suspend(func() error {
		incoming := make(map[string]*registry.ListDefinition)
		for _, def := range cat.List() {
			incoming[def.ID] = def
		}

		e.mu.Lock()
		var removed []string
		kept := make(map[*List]*registry.ListDefinition)
		for id, l := range e.lists {
			def, ok := incoming[id]
			if !ok {
				delete(e.lists, id)
				removed = append(removed, id)
				continue
			}
			kept[l] = def
			delete(incoming, id)
		}
		e.mu.Unlock()

		for l, def := range kept {
			l.swap(def)
		}

		for _, def := range incoming {
			if _, err := e.AddList(def); err != nil {
				return err
			}
		}

		for _, p := range e.Profiles() {
			p.rebind()
		}

		e.emit(Event{Kind: EventReloaded})
		e.logger.Info("catalog reloaded",
			logging.IntField("lists", cat.Count()),
			logging.IntField("removed", len(removed)),
		)
		return nil
	})
}

// swap installs def and repairs the visible subset.
func (l *List) swap(def *registry.ListDefinition) {
	l.slotMu.Lock()
	defer l.slotMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.def = def
	n := def.EffectiveVisible()
	kept := make([]challenge.ID, 0, n)
	seen := make(map[challenge.ID]bool, n)
	for _, id := range l.visible {
		if len(kept) == n {
			break
		}
		if _, ok := def.Challenge(id); ok && !seen[id] {
			kept = append(kept, id)
			seen[id] = true
		}
	}
	for _, c := range def.Challenges() {
		if len(kept) == n {
			break
		}
		if !seen[c.ID] {
			kept = append(kept, c.ID)
			seen[c.ID] = true
		}
	}
	l.visible = kept
}

// rebind points every attempt at its list's current
// definition.
func (p *Profile) rebind() {
	e := p.e

	p.mu.Lock()
	defer p.mu.Unlock()

	for listID, slots := range p.active {
		l, err := e.List(listID)
		for _, g := range append([]*Progress(nil), slots...) {
			var def *challenge.Definition
			ok := false
			if err == nil {
				def, ok = l.Challenge(g.ID())
			}
			if !ok {
				p.removeLocked(g, ReasonRemoved)
				e.notify(p.id, Notice{
					Kind: NoticeNoLongerAvailable,
					List: listID, Challenge: g.ID(),
				})
				continue
			}
			if def == g.def && l == g.list {
				continue
			}
			ng := newProgress(p, l, def, g.started)
			if states, err := g.states(); err == nil {
				if ng.restoreStates(states) != nil {
					ng = newProgress(p, l, def, g.started)
				}
			}
			p.replaceSlotLocked(listID, g, ng)
		}
	}
}

func (p *Profile) replaceSlotLocked(list string, old, next *Progress) {
	for i, g := range p.active[list] {
		if g == old {
			old.state.Store(stateCancelled)
			p.active[list][i] = next
			return
		}
	}
}
