// Package store persists engine state: each participant's
// active progress, completion history and pending rewards, and
// each list's visible subset and last rotation time.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// ProgressRecord is one active attempt. Requirements maps a
// requirement name to its serialized progression state.
type ProgressRecord struct {
	List         string                     `json:"list"`
	Challenge    string                     `json:"challenge"`
	StartedAt    time.Time                  `json:"started_at"`
	Requirements map[string]json.RawMessage `json:"requirements,omitempty"`
}

// CompletedRecord is one completion history entry.
type CompletedRecord struct {
	List        string    `json:"list"`
	Challenge   string    `json:"challenge"`
	CompletedAt time.Time `json:"completed_at"`
}

// ProfileRecord is the persisted form of a participant.
type ProfileRecord struct {
	Participant    string             `json:"participant"`
	Active         []ProgressRecord   `json:"active,omitempty"`
	Completed      []CompletedRecord  `json:"completed,omitempty"`
	PendingRewards []challenge.Reward `json:"pending_rewards,omitempty"`
}

// RotationRecord is the persisted rotation state of a list.
type RotationRecord struct {
	List         string    `json:"list"`
	Visible      []string  `json:"visible"`
	LastRotation time.Time `json:"last_rotation"`
}

// Store saves and loads engine state. Save calls replace the
// previously stored set.
type Store interface {
	SaveProfiles(ctx context.Context, profiles []ProfileRecord) error
	LoadProfiles(ctx context.Context) ([]ProfileRecord, error)
	SaveRotations(ctx context.Context, rotations []RotationRecord) error
	LoadRotations(ctx context.Context) ([]RotationRecord, error)
	Close() error
}
