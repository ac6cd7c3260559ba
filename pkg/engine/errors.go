package engine

import "errors"

var (
	// ErrNoLongerAvailable is returned when a challenge is no
	// longer part of its list's pool. No state was changed.
	ErrNoLongerAvailable = errors.New("challenge no longer available")

	// ErrUnknownList is returned for a list id the engine
	// does not know.
	ErrUnknownList = errors.New("unknown list")

	// ErrDuplicateList is returned when a list id is added
	// twice.
	ErrDuplicateList = errors.New("list already registered")

	// ErrUnknownChallenge is returned for a challenge id that
	// was never part of the list.
	ErrUnknownChallenge = errors.New("unknown challenge")

	// ErrNotVisible is returned when selecting a challenge
	// outside the list's visible subset.
	ErrNotVisible = errors.New("challenge not currently visible")

	// ErrAlreadyCompleted is returned when selecting a
	// challenge the participant already completed.
	ErrAlreadyCompleted = errors.New("challenge already completed")

	// ErrAlreadyInProgress is returned when the challenge
	// already occupies one of the participant's slots.
	ErrAlreadyInProgress = errors.New("challenge already in progress")

	// ErrAutomaticChallenge is returned when selecting an
	// always-active challenge.
	ErrAutomaticChallenge = errors.New("challenge is always active")

	// ErrPermissionDenied is returned when the participant
	// lacks the challenge's permission.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrSlotsHeldBySelection is returned when an always-active
	// challenge cannot displace manually selected ones.
	ErrSlotsHeldBySelection = errors.New("slots held by selected challenges")

	// ErrNotActive is returned when no active attempt matches.
	ErrNotActive = errors.New("challenge not active")
)
