package challenge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingID is returned for a definition without an id.
	ErrMissingID = errors.New("challenge id is required")

	// ErrNoRequirements is returned for a definition that
	// could never complete.
	ErrNoRequirements = errors.New(
		"challenge needs at least one requirement",
	)
)

// Definition is an immutable catalog entry. Two definitions
// are the same challenge when their IDs match.
type Definition struct {
	ID           ID
	Description  string
	Requirements []Requirement
	Rewards      []Reward

	// NeedsSelection marks a manual challenge. When false the
	// challenge is always-active and granted automatically.
	NeedsSelection bool

	// Repeatable challenges become eligible again once
	// RepeatableEvery has passed since completion.
	Repeatable      bool
	RepeatableEvery time.Duration

	// Permission, when set, must be granted to the
	// participant before the challenge can be selected.
	Permission string

	// MaxDuration bounds an attempt. Zero means unlimited.
	MaxDuration time.Duration
}

// AlwaysActive reports whether the challenge is granted
// without an explicit selection.
func (d *Definition) AlwaysActive() bool {
	return !d.NeedsSelection
}

// Requirement returns the requirement with the given name.
func (d *Definition) Requirement(name string) (Requirement, bool) {
	for _, r := range d.Requirements {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// CooldownElapsed reports whether a repeatable challenge
// completed at completedAt may be attempted again at now.
func (d *Definition) CooldownElapsed(
	completedAt, now time.Time,
) bool {
	return d.Repeatable && now.Sub(completedAt) >= d.RepeatableEvery
}

// Validate checks the structural invariants of a definition.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return ErrMissingID
	}
	if len(d.Requirements) == 0 {
		return fmt.Errorf("%s: %w", d.ID, ErrNoRequirements)
	}
	seen := make(map[string]bool, len(d.Requirements))
	for _, r := range d.Requirements {
		if seen[r.Name()] {
			return fmt.Errorf(
				"%s: duplicate requirement %q", d.ID, r.Name(),
			)
		}
		seen[r.Name()] = true
	}
	if d.RepeatableEvery < 0 || d.MaxDuration < 0 {
		return fmt.Errorf("%s: negative duration", d.ID)
	}
	return nil
}
