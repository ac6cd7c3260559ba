package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps state as two JSON documents, profiles.json
// and rotations.json, in a directory. Writes go to a temporary
// file that is renamed into place.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// NewFileStore creates dir if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) write(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// read decodes name into v. A missing file leaves v untouched.
func (s *FileStore) read(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// SaveProfiles replaces the stored profiles.
func (s *FileStore) SaveProfiles(
	ctx context.Context, profiles []ProfileRecord,
) error {
	return s.write(ctx, "profiles.json", profiles)
}

// LoadProfiles returns the stored profiles.
func (s *FileStore) LoadProfiles(
	ctx context.Context,
) ([]ProfileRecord, error) {
	var out []ProfileRecord
	if err := s.read(ctx, "profiles.json", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveRotations replaces the stored rotation state.
func (s *FileStore) SaveRotations(
	ctx context.Context, rotations []RotationRecord,
) error {
	return s.write(ctx, "rotations.json", rotations)
}

// LoadRotations returns the stored rotation state.
func (s *FileStore) LoadRotations(
	ctx context.Context,
) ([]RotationRecord, error) {
	var out []RotationRecord
	if err := s.read(ctx, "rotations.json", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
