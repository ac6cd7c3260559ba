// Package sqlite provides a SQLite-backed store.Store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/store"
)

//go:embed schema.sql
var schema string

// Store persists engine state in a SQLite database.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func (s *Store) withTx(
	ctx context.Context, fn func(tx *sql.Tx) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SaveRotations replaces the stored rotation state.
func (s *Store) SaveRotations(
	ctx context.Context, rotations []store.RotationRecord,
) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rotations`); err != nil {
			return fmt.Errorf("clear rotations: %w", err)
		}
		for _, r := range rotations {
			visible, err := json.Marshal(r.Visible)
			if err != nil {
				return fmt.Errorf("encode visible %s: %w", r.List, err)
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO rotations (list, visible, last_rotation)
VALUES (?, ?, ?)
`, r.List, string(visible), toMillis(r.LastRotation)); err != nil {
				return fmt.Errorf("save rotation %s: %w", r.List, err)
			}
		}
		return nil
	})
}

// LoadRotations returns the stored rotation state ordered by
// list id.
func (s *Store) LoadRotations(
	ctx context.Context,
) ([]store.RotationRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT list, visible, last_rotation
FROM rotations
ORDER BY list
`)
	if err != nil {
		return nil, fmt.Errorf("load rotations: %w", err)
	}
	defer rows.Close()

	var out []store.RotationRecord
	for rows.Next() {
		var (
			rec     store.RotationRecord
			visible string
			last    int64
		)
		if err := rows.Scan(&rec.List, &visible, &last); err != nil {
			return nil, fmt.Errorf("scan rotation: %w", err)
		}
		if err := json.Unmarshal([]byte(visible), &rec.Visible); err != nil {
			return nil, fmt.Errorf("decode visible %s: %w", rec.List, err)
		}
		rec.LastRotation = fromMillis(last)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveProfiles replaces the stored profiles.
func (s *Store) SaveProfiles(
	ctx context.Context, profiles []store.ProfileRecord,
) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{
			"active_progress", "completed", "profiles",
		} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, p := range profiles {
			if err := insertProfile(ctx, tx, p); err != nil {
				return fmt.Errorf("save profile %s: %w", p.Participant, err)
			}
		}
		return nil
	})
}

func insertProfile(
	ctx context.Context, tx *sql.Tx, p store.ProfileRecord,
) error {
	rewards := p.PendingRewards
	if rewards == nil {
		rewards = []challenge.Reward{}
	}
	encoded, err := json.Marshal(rewards)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO profiles (participant, pending_rewards) VALUES (?, ?)
`, p.Participant, string(encoded)); err != nil {
		return err
	}

	for i, a := range p.Active {
		reqs, err := json.Marshal(a.Requirements)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO active_progress (
	participant,
	list,
	challenge,
	position,
	started_at,
	requirements
) VALUES (?, ?, ?, ?, ?, ?)
`,
			p.Participant,
			a.List,
			a.Challenge,
			i,
			toMillis(a.StartedAt),
			string(reqs),
		); err != nil {
			return err
		}
	}

	for _, c := range p.Completed {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO completed (participant, list, challenge, completed_at)
VALUES (?, ?, ?, ?)
`, p.Participant, c.List, c.Challenge, toMillis(c.CompletedAt)); err != nil {
			return err
		}
	}
	return nil
}

// LoadProfiles returns the stored profiles ordered by
// participant id.
func (s *Store) LoadProfiles(
	ctx context.Context,
) ([]store.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT participant, pending_rewards
FROM profiles
ORDER BY participant
`)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	var (
		out   []store.ProfileRecord
		index = make(map[string]int)
	)
	for rows.Next() {
		var (
			rec     store.ProfileRecord
			rewards string
		)
		if err := rows.Scan(&rec.Participant, &rewards); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if err := json.Unmarshal([]byte(rewards), &rec.PendingRewards); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode rewards %s: %w", rec.Participant, err)
		}
		if len(rec.PendingRewards) == 0 {
			rec.PendingRewards = nil
		}
		index[rec.Participant] = len(out)
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	if err := s.loadActive(ctx, out, index); err != nil {
		return nil, err
	}
	if err := s.loadCompleted(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) loadActive(
	ctx context.Context, out []store.ProfileRecord, index map[string]int,
) error {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT participant, list, challenge, started_at, requirements
FROM active_progress
ORDER BY participant, list, position
`)
	if err != nil {
		return fmt.Errorf("load active progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			participant string
			rec         store.ProgressRecord
			started     int64
			reqs        string
		)
		if err := rows.Scan(
			&participant, &rec.List, &rec.Challenge, &started, &reqs,
		); err != nil {
			return fmt.Errorf("scan active progress: %w", err)
		}
		if err := json.Unmarshal([]byte(reqs), &rec.Requirements); err != nil {
			return fmt.Errorf("decode progress %s/%s: %w", rec.List, rec.Challenge, err)
		}
		rec.StartedAt = fromMillis(started)
		if i, ok := index[participant]; ok {
			out[i].Active = append(out[i].Active, rec)
		}
	}
	return rows.Err()
}

func (s *Store) loadCompleted(
	ctx context.Context, out []store.ProfileRecord, index map[string]int,
) error {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT participant, list, challenge, completed_at
FROM completed
ORDER BY participant, completed_at, list, challenge
`)
	if err != nil {
		return fmt.Errorf("load completed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			participant string
			rec         store.CompletedRecord
			at          int64
		)
		if err := rows.Scan(
			&participant, &rec.List, &rec.Challenge, &at,
		); err != nil {
			return fmt.Errorf("scan completed: %w", err)
		}
		rec.CompletedAt = fromMillis(at)
		if i, ok := index[participant]; ok {
			out[i].Completed = append(out[i].Completed, rec)
		}
	}
	return rows.Err()
}
