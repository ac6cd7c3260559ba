package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DotEnv reads KEY=VALUE files. Values found in the file never
// override variables already set in the process environment.
type DotEnv struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewDotEnv creates an empty DotEnv.
func NewDotEnv() *DotEnv {
	return &DotEnv{vars: make(map[string]string)}
}

// Load reads path. Blank lines and lines starting with # are
// skipped, an optional "export " prefix is dropped, and
// surrounding quotes are removed from values.
func (d *DotEnv) Load(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		d.vars[key] = value
	}
	return scanner.Err()
}

// Get returns the process value of key, falling back to the
// file.
func (d *DotEnv) Get(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vars[key]
}

// Apply exports every file variable not already set in the
// process environment.
func (d *DotEnv) Apply() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for k, v := range d.vars {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// All returns a copy of the file variables.
func (d *DotEnv) All() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make(map[string]string, len(d.vars))
	for k, v := range d.vars {
		result[k] = v
	}
	return result
}
