// Package registry persists the pid → instance table shared by every fg
// invocation.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"fg/internal/failure"
	"fg/internal/lockfile"
)

// Record describes one launched instance.
type Record struct {
	PID         int       `json:"pid"`
	Version     string    `json:"version"`
	StartedAt   time.Time `json:"started_at"`
	LogFile     string    `json:"log_file"`
	Executable  string    `json:"executable"`
	CommandLine []string  `json:"command_line"`
}

// Table maps pids to records.
type Table map[int]Record

// Store reads and rewrites the registry file. Mutations hold an advisory lock
// file so concurrent invocations do not lose each other's updates.
type Store struct {
	path       string
	staleAfter time.Duration
}

// Open returns a Store backed by path. Nothing is created until the first write.
func Open(path string) *Store {
	return &Store{path: path, staleAfter: lockfile.DefaultStaleAfter}
}

// Path returns the registry file location.
func (s *Store) Path() string { return s.path }

// Load returns the current table. A missing file yields an empty table.
func (s *Store) Load() (Table, error) {
	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Table{}, nil
		}
		return nil, failure.Wrap(failure.RegistryFailure, err, "read registry")
	}
	if len(contents) == 0 {
		return Table{}, nil
	}

	var raw map[string]Record
	if err := json.Unmarshal(contents, &raw); err != nil {
		return nil, failure.From(failure.RegistryFailure, err, "decode registry").With("path", s.path)
	}
	table := make(Table, len(raw))
	for key, rec := range raw {
		pid, err := strconv.Atoi(key)
		if err != nil || pid <= 0 {
			continue
		}
		rec.PID = pid
		table[pid] = rec
	}
	return table, nil
}

// Update loads the table under the lock, applies fn and writes the result
// back. Nothing is written when fn returns an error.
func (s *Store) Update(ctx context.Context, fn func(Table) error) error {
	release, err := lockfile.Acquire(ctx, s.path+".lock", s.staleAfter)
	if err != nil {
		return failure.Wrap(failure.RegistryFailure, err, "lock registry")
	}
	defer release()

	table, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(table); err != nil {
		return err
	}
	return s.save(table)
}

// Put inserts or replaces rec.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.PID <= 0 {
		return failure.New(failure.InvalidArgument, "record has no pid")
	}
	return s.Update(ctx, func(t Table) error {
		t[rec.PID] = rec
		return nil
	})
}

// Remove deletes the given pids and reports how many were present.
func (s *Store) Remove(ctx context.Context, pids ...int) (int, error) {
	removed := 0
	err := s.Update(ctx, func(t Table) error {
		for _, pid := range pids {
			if _, ok := t[pid]; ok {
				delete(t, pid)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Get returns the record for pid.
func (s *Store) Get(pid int) (Record, bool, error) {
	table, err := s.Load()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := table[pid]
	return rec, ok, nil
}

// Records returns the table ordered by start time, then pid.
func (t Table) Records() []Record {
	out := make([]Record, 0, len(t))
	for _, rec := range t {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].PID < out[j].PID
	})
	return out
}

func (s *Store) save(t Table) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("prepare registry directory: %w", err)
	}

	raw := make(map[string]Record, len(t))
	for pid, rec := range t {
		raw[strconv.Itoa(pid)] = rec
	}
	buf, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "processes-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		return fmt.Errorf("write registry temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close registry temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return failure.Wrap(failure.RegistryFailure, err, "replace registry")
	}
	return nil
}
