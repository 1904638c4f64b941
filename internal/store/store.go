// Package store persists the item snapshot of a GitHub project.
// Each project lives in its own JSON-lines file; every mutation is flushed
// with an atomic temp-file + rename before the call returns.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/natefinch/atomic"
)

var (
	// ErrIO indicates reading or writing the snapshot failed.
	ErrIO = errors.New("snapshot i/o failed")
	// ErrCorruptRecord indicates a persisted line failed decoding or validation.
	ErrCorruptRecord = errors.New("corrupt snapshot record")
	// ErrDuplicateItems indicates an upsert batch repeats an item id.
	ErrDuplicateItems = errors.New("duplicate items")
	// ErrLocked indicates another process holds the project lock.
	ErrLocked = errors.New("project is locked by another sync")
	// ErrInvalidProjectID indicates a project id that cannot name a file
	// inside the data directory.
	ErrInvalidProjectID = errors.New("invalid project id")
)

const maxRecordSize = 1 << 20

// Store reads and writes project snapshots under a data directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created lazily.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the snapshot file for a project.
func (s *Store) Path(projectID string) string {
	return filepath.Join(s.dir, projectID+".json")
}

// checkID rejects project ids that would resolve outside the data directory.
func checkID(projectID string) error {
	if projectID == "" || projectID == "." || projectID == ".." || strings.ContainsAny(projectID, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidProjectID, projectID)
	}
	return nil
}

// Load reads the snapshot of a project. A project that was never persisted
// yields an empty snapshot and no file is created.
func (s *Store) Load(projectID string) (*domain.Project, error) {
	if err := checkID(projectID); err != nil {
		return nil, err
	}
	path := s.Path(projectID)
	project := &domain.Project{ID: projectID, Items: []domain.Item{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return project, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIO, path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var item domain.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptRecord, path, line, err)
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorruptRecord, path, line, err)
		}
		project.Items = append(project.Items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", ErrIO, path, err)
	}

	return project, nil
}

// UpsertItems replaces stored items sharing an id with the given items, then
// appends them and persists the whole project. A batch that repeats an id is
// rejected before anything changes.
//
// If persisting fails the in-memory project already holds the update; callers
// should retry later rather than assume the change was lost.
func (s *Store) UpsertItems(project *domain.Project, items ...domain.Item) error {
	if err := checkID(project.ID); err != nil {
		return err
	}
	incoming := make(map[string]bool, len(items))
	for _, item := range items {
		if incoming[item.ID] {
			return fmt.Errorf("%w: item %s appears more than once", ErrDuplicateItems, item.ID)
		}
		incoming[item.ID] = true
	}

	kept := make([]domain.Item, 0, len(project.Items)+len(items))
	for _, item := range project.Items {
		if !incoming[item.ID] {
			kept = append(kept, item)
		}
	}
	project.Items = append(kept, items...)

	return s.write(project)
}

func (s *Store) write(project *domain.Project) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, item := range project.Items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("%w: encoding item %s: %v", ErrIO, item.ID, err)
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrIO, s.dir, err)
	}

	path := s.Path(project.ID)
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	return nil
}

// Lock takes an exclusive, non-blocking lock on a project so that only one
// process syncs it at a time. The returned func releases the lock.
func (s *Store) Lock(projectID string) (func() error, error) {
	if err := checkID(projectID); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrIO, s.dir, err)
	}

	lock := flock.New(filepath.Join(s.dir, projectID+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: acquiring lock: %v", ErrIO, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, projectID)
	}
	return lock.Unlock, nil
}
