// Package store keeps saved sessions and patterns as one JSON file per
// record in a directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"beatgrid/debug"
)

// ErrNotFound is returned for ids with no record
var ErrNotFound = errors.New("record not found")

// Meta is the part every record shares
type Meta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record is a pointer to a storable struct embedding Meta
type Record interface {
	Base() *Meta
}

// Collection stores records of one kind under dir
type Collection[T Record] struct {
	dir       string
	newRecord func() T
	now       func() time.Time

	mu sync.Mutex // serializes writers
}

// NewCollection creates a collection in dir. newRecord returns an empty
// record to decode into.
func NewCollection[T Record](dir string, newRecord func() T) *Collection[T] {
	return &Collection[T]{
		dir:       dir,
		newRecord: newRecord,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dir returns the directory holding the records
func (c *Collection[T]) Dir() string {
	return c.dir
}

func (c *Collection[T]) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: bad id %q", ErrNotFound, id)
	}
	return filepath.Join(c.dir, id+".json"), nil
}

// List returns every readable record, newest first. Corrupt files are
// skipped. On error the slice is empty, never nil.
func (c *Collection[T]) List() ([]T, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		debug.Warn("store", "list %s: %v", c.dir, err)
		return []T{}, fmt.Errorf("list %s: %w", c.dir, err)
	}

	out := []T{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := c.read(filepath.Join(c.dir, name))
		if err != nil {
			debug.Warn("store", "skipping %s: %v", name, err)
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Base().UpdatedAt.After(out[j].Base().UpdatedAt)
	})
	return out, nil
}

// Search returns records whose name contains q, ignoring case
func (c *Collection[T]) Search(q string) ([]T, error) {
	all, err := c.List()
	if err != nil {
		return all, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return all, nil
	}
	out := []T{}
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Base().Name), q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Get loads one record
func (c *Collection[T]) Get(id string) (T, error) {
	var zero T
	path, err := c.path(id)
	if err != nil {
		return zero, err
	}
	rec, err := c.read(path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return zero, err
	}
	return rec, nil
}

// Save inserts or updates rec by id. An empty id gets a new one. On failure
// rec is returned unchanged along with the error.
func (c *Collection[T]) Save(rec T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := rec.Base()
	if m.ID != "" {
		if _, err := c.path(m.ID); err != nil {
			return rec, err
		}
	}
	before := *m
	now := c.now()
	if m.ID == "" {
		m.ID = uuid.New().String()
		m.CreatedAt = now
	} else if m.CreatedAt.IsZero() {
		// keep the original creation time of an existing record
		if old, err := c.Get(m.ID); err == nil {
			m.CreatedAt = old.Base().CreatedAt
		} else {
			m.CreatedAt = now
		}
	}
	m.UpdatedAt = now

	if err := c.write(rec); err != nil {
		*m = before
		return rec, err
	}
	return rec, nil
}

// SaveAsNew always stores rec under a fresh id
func (c *Collection[T]) SaveAsNew(rec T) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := rec.Base()
	before := *m
	now := c.now()
	m.ID = uuid.New().String()
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := c.write(rec); err != nil {
		*m = before
		return rec, err
	}
	return rec, nil
}

// Delete removes a record
func (c *Collection[T]) Delete(id string) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (c *Collection[T]) read(path string) (T, error) {
	var zero T
	data, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	rec := c.newRecord()
	if err := json.Unmarshal(data, rec); err != nil {
		return zero, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if rec.Base().ID == "" {
		return zero, fmt.Errorf("decode %s: missing id", filepath.Base(path))
	}
	return rec, nil
}

// write replaces the record file atomically (temp file + rename)
func (c *Collection[T]) write(rec T) error {
	path, err := c.path(rec.Base().ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", c.dir, err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	debug.Log("store", "saved %s (%s)", rec.Base().ID, rec.Base().Name)
	return nil
}
