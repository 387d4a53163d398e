// Package spool implements the durable spool store: one file per job
// identifier under a configured root directory.
//
// The root is an explicit configuration value; the store never changes the
// process working directory. Entries that fail downstream processing are
// moved to a dead-letter area under the root rather than deleted, so a bad
// document or an unreachable printer never silently loses a job.
package spool

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coreprint/spoold/errors"
	"github.com/coreprint/spoold/job"
)

// deadDir is the dead-letter area under the spool root.
const deadDir = "dead"

// Store persists job documents keyed by job identifier.
type Store struct {
	root string
	mu   sync.Mutex
}

// Open creates the spool root (and its dead-letter area) if needed and
// returns a store rooted there.
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: spool root is empty", errors.ErrInvalidConfig)
	}

	if err := os.MkdirAll(filepath.Join(root, deadDir), 0o755); err != nil {
		return nil, fmt.Errorf("create spool root %q: %w", root, err)
	}

	return &Store{root: root}, nil
}

// Root returns the spool root directory.
func (s *Store) Root() string {
	return s.root
}

// Put persists a job document as a new spool entry. A job identifier that
// is already spooled is rejected; duplicate in-flight identifiers would
// otherwise interleave writes to the same entry.
func (s *Store) Put(j *job.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}

	data, err := j.Encode()
	if err != nil {
		return err
	}

	if j.ID() == deadDir {
		return fmt.Errorf("%w: %q is reserved", errors.ErrInvalidJobName, deadDir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.entryPath(j.ID())
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateJob, j.ID())
	}

	tmp := s.stagingPath(j.ID())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write spool entry %s: %w", j.ID(), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit spool entry %s: %w", j.ID(), err)
	}

	return nil
}

// Get re-reads a spool entry by identifier.
func (s *Store) Get(id string) (*job.Job, error) {
	data, err := os.ReadFile(s.entryPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrEntryNotFound, id)
		}
		return nil, fmt.Errorf("read spool entry %s: %w", id, err)
	}

	return job.Decode(data)
}

// Contains reports whether an entry exists for the identifier.
func (s *Store) Contains(id string) bool {
	_, err := os.Stat(s.entryPath(id))
	return err == nil
}

// Remove retires a spool entry after successful dispatch.
func (s *Store) Remove(id string) error {
	if err := os.Remove(s.entryPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrEntryNotFound, id)
		}
		return fmt.Errorf("remove spool entry %s: %w", id, err)
	}
	return nil
}

// Bury moves a failed entry to the dead-letter area and records the reason
// in a sidecar file. The entry leaves the active spool but remains on disk
// for operator inspection or replay.
func (s *Store) Bury(id string, reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.entryPath(id)
	dst := filepath.Join(s.root, deadDir, id)

	if err := os.Rename(src, dst); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrEntryNotFound, id)
		}
		return fmt.Errorf("bury spool entry %s: %w", id, err)
	}

	if reason != nil {
		if err := os.WriteFile(dst+".reason", []byte(reason.Error()+"\n"), 0o644); err != nil {
			slog.Warn("Failed to record dead-letter reason", "job", id, "error", err)
		}
	}

	return nil
}

// List returns the identifiers of all active spool entries.
func (s *Store) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list spool root: %w", err)
	}

	ids := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

// Len returns the number of active spool entries.
func (s *Store) Len() (int, error) {
	ids, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Dead returns the identifiers of dead-lettered entries.
func (s *Store) Dead() ([]string, error) {
	dirEntries, err := os.ReadDir(filepath.Join(s.root, deadDir))
	if err != nil {
		return nil, fmt.Errorf("list dead-letter area: %w", err)
	}

	ids := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || filepath.Ext(e.Name()) == ".reason" {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}

func (s *Store) entryPath(id string) string {
	return filepath.Join(s.root, id)
}

// stagingPath returns the temporary file Put writes before the rename.
// The leading dot keeps the name out of the identifier namespace: Validate
// rejects dot-prefixed job names, so staging can never shadow an entry.
func (s *Store) stagingPath(id string) string {
	return filepath.Join(s.root, "."+id+".tmp")
}
