package master

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry is the persistent, ordered list of node records backing
// <base_dir>/nodes/nodes.yaml. Every mutation rewrites the whole file.
type Registry struct {
	mu      sync.RWMutex
	path    string
	records []Record
}

// NewRegistry loads path if it exists, or starts empty.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("master: read nodes.yaml: %w", err)
	}
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("master: parse nodes.yaml: %w", err)
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("master: nodes.yaml: %w", err)
		}
	}
	r.records = records
	return r, nil
}

func (r *Registry) save() error {
	data, err := yaml.Marshal(r.records)
	if err != nil {
		return fmt.Errorf("master: marshal nodes.yaml: %w", err)
	}
	return os.WriteFile(r.path, data, 0o640)
}

// List returns a copy of the current ordered registry.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Get looks up a node by id.
func (r *Registry) Get(id int) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return Record{}, false
}

// Create assigns id = max(existing)+1 (or 1) and appends rec, rejecting a
// duplicate name or address.
func (r *Registry) Create(rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxID := 0
	for _, existing := range r.records {
		if existing.Name == rec.Name {
			return Record{}, fmt.Errorf("master: node name %q already registered", rec.Name)
		}
		if existing.Address == rec.Address {
			return Record{}, fmt.Errorf("master: node address %q already registered", rec.Address)
		}
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	rec.ID = maxID + 1
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}

	r.records = append(r.records, rec)
	if err := r.save(); err != nil {
		r.records = r.records[:len(r.records)-1]
		return Record{}, err
	}
	return rec, nil
}

// Update replaces the record with id, rejecting a name/address collision
// with a different node.
func (r *Registry) Update(id int, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, existing := range r.records {
		if existing.ID == id {
			idx = i
			continue
		}
		if existing.Name == rec.Name {
			return Record{}, fmt.Errorf("master: node name %q already registered", rec.Name)
		}
		if existing.Address == rec.Address {
			return Record{}, fmt.Errorf("master: node address %q already registered", rec.Address)
		}
	}
	if idx < 0 {
		return Record{}, fmt.Errorf("master: unknown node id %d", id)
	}

	rec.ID = id
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}

	prev := r.records[idx]
	r.records[idx] = rec
	if err := r.save(); err != nil {
		r.records[idx] = prev
		return Record{}, err
	}
	return rec, nil
}

// Delete removes the record with id. A no-op (not an error) if absent.
func (r *Registry) Delete(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, rec := range r.records {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removed := r.records[idx]
	r.records = append(r.records[:idx], r.records[idx+1:]...)
	if err := r.save(); err != nil {
		r.records = append(r.records[:idx], append([]Record{removed}, r.records[idx:]...)...)
		return err
	}
	return nil
}
