package container

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Record is the registry's view of one container.
type Record struct {
	ID        ID        `json:"id"`
	Name      string    `json:"name"`
	TabCount  int       `json:"tab_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is the in-memory table of known containers. Discovery populates
// it; the deletion executor removes entries after a confirmed deletion.
type Registry struct {
	mu      sync.RWMutex
	records map[ID]*Record
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[ID]*Record)}
}

// Put adds or replaces a record.
func (r *Registry) Put(rec Record) {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = &rec
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id ID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Remove deletes the record for id and reports whether it existed.
func (r *Registry) Remove(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return false
	}
	delete(r.records, id)
	return true
}

// SetTabCount updates the cached tab count of a known container.
func (r *Registry) SetTabCount(id ID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[id]; ok {
		rec.TabCount = n
		rec.UpdatedAt = time.Now()
	}
}

// Replace swaps in a discovery snapshot. Names already known are kept when
// the snapshot has none.
func (r *Registry) Replace(snapshot []Record) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[ID]*Record, len(snapshot))
	for _, rec := range snapshot {
		rec := rec
		if rec.Name == "" {
			if prev, ok := r.records[rec.ID]; ok {
				rec.Name = prev.Name
			}
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = now
		}
		next[rec.ID] = &rec
	}
	r.records = next
}

// List returns all records ordered by name, then id.
func (r *Registry) List() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of known containers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Save writes the registry to path as JSON. An empty path is a no-op.
func (r *Registry) Save(path string) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(r.List(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load merges records persisted by Save. Cached tab counts are reset since
// they are stale by definition. A missing file is not an error.
func (r *Registry) Load(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if _, err := ValidateString(string(rec.ID)); err != nil {
			continue
		}
		rec := rec
		rec.TabCount = 0
		r.records[rec.ID] = &rec
	}
	return nil
}
