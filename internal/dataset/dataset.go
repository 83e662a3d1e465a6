// Package dataset implements the Dataset Registry and Dataset Recorder: the
// on-disk dataset directory tree, its active-writer interlock, and the
// per-camera worker that drains a recording session's queue into timestamped
// .npy files.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Dataset is one on-disk dataset directory tree rooted at <base>/<name>.
type Dataset struct {
	Name string
	Root string

	activeWriters int32
}

// ActiveWriters returns the current writer interlock count.
func (d *Dataset) ActiveWriters() int32 { return atomic.LoadInt32(&d.activeWriters) }

func (d *Dataset) rawDir() string { return filepath.Join(d.Root, "raw") }

// RawDir exposes the dataset's raw frame directory for the image-serving API.
func (d *Dataset) RawDir() string { return d.rawDir() }

var subdirs = []string{
	"raw",
	filepath.Join("processed", "train"),
	filepath.Join("processed", "val"),
	filepath.Join("processed", "test"),
}

func ensureSubstructure(root string) error {
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o750); err != nil {
			return fmt.Errorf("dataset: create %s: %w", sub, err)
		}
	}
	return nil
}

// Registry enumerates and manages every dataset under baseDir.
type Registry struct {
	baseDir string

	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewRegistry scans baseDir, reconstructing one Dataset per existing
// subdirectory and creating any missing substructure underneath it.
func NewRegistry(baseDir string) (*Registry, error) {
	r := &Registry{baseDir: baseDir, datasets: make(map[string]*Dataset)}

	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("dataset: create base dir: %w", err)
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("dataset: scan base dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		root := filepath.Join(baseDir, e.Name())
		if err := ensureSubstructure(root); err != nil {
			return nil, err
		}
		r.datasets[e.Name()] = &Dataset{Name: e.Name(), Root: root}
	}
	return r, nil
}

// Create makes a new dataset directory tree, rejecting a name collision or
// an invalid identifier.
func (r *Registry) Create(name string) (*Dataset, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("dataset: invalid name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.datasets[name]; exists {
		return nil, fmt.Errorf("dataset: %q already exists", name)
	}

	root := filepath.Join(r.baseDir, name)
	if err := ensureSubstructure(root); err != nil {
		return nil, err
	}

	d := &Dataset{Name: name, Root: root}
	r.datasets[name] = d
	return d, nil
}

// Get looks up a dataset by name.
func (r *Registry) Get(name string) (*Dataset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.datasets[name]
	return d, ok
}

// List returns every known dataset name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.datasets))
	for name := range r.datasets {
		out = append(out, name)
	}
	return out
}

// Rename implements rename-as-remove-then-add: it removes the old entry,
// renames the directory, and adds it back under the new name, rolling back
// on failure of either step.
func (r *Registry) Rename(oldName, newName string) error {
	if !namePattern.MatchString(newName) {
		return fmt.Errorf("dataset: invalid name %q", newName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.datasets[oldName]
	if !ok {
		return fmt.Errorf("dataset: %q does not exist", oldName)
	}
	if d.ActiveWriters() > 0 {
		return fmt.Errorf("dataset: %q has active writers", oldName)
	}
	if _, exists := r.datasets[newName]; exists {
		return fmt.Errorf("dataset: %q already exists", newName)
	}

	delete(r.datasets, oldName)

	newRoot := filepath.Join(r.baseDir, newName)
	if err := os.Rename(d.Root, newRoot); err != nil {
		r.datasets[oldName] = d // rollback remove
		return fmt.Errorf("dataset: rename failed: %w", err)
	}

	d.Name = newName
	d.Root = newRoot
	r.datasets[newName] = d
	return nil
}

// Delete removes a dataset's directory tree. Refused while
// active_writers > 0.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.datasets[name]
	if !ok {
		return nil
	}
	if d.ActiveWriters() > 0 {
		return fmt.Errorf("dataset: %q has active writers, refusing delete", name)
	}

	if err := os.RemoveAll(d.Root); err != nil {
		return fmt.Errorf("dataset: delete failed: %w", err)
	}
	delete(r.datasets, name)
	return nil
}
