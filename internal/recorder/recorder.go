package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	DefaultKeep = 3
	DefaultDir  = "data/audit"
)

// Event is a single line of the audit trail.
type Event struct {
	Timestamp   time.Time   `json:"ts"`
	Type        string      `json:"type"`
	ContainerID string      `json:"container_id,omitempty"`
	Data        interface{} `json:"data"`
}

// Recorder appends deletion attempts to a rotating set of JSONL files.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	basePath string
	keep     int
}

// NewRecorder creates a recorder rooted at basePath, creating the directory.
func NewRecorder(basePath string, keep int) (*Recorder, error) {
	if basePath == "" {
		basePath = DefaultDir
	}
	if keep <= 0 {
		keep = DefaultKeep
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{basePath: basePath, keep: keep}, nil
}

// Start opens a new audit file for a server run, pruning old ones so that
// at most keep files remain.
func (r *Recorder) Start(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}

	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate audit files: %w", err)
	}

	path := filepath.Join(r.basePath, fmt.Sprintf("audit_%s_%d.jsonl", label, time.Now().UnixMilli()))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	r.file = f
	r.encoder = json.NewEncoder(f)
	return nil
}

// Log writes one event. It is a no-op before Start.
func (r *Recorder) Log(eventType, containerID string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}
	_ = r.encoder.Encode(Event{
		Timestamp:   time.Now(),
		Type:        eventType,
		ContainerID: containerID,
		Data:        data,
	})
}

// Path returns the file currently written to.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return ""
	}
	return r.file.Name()
}

// rotate deletes the oldest files so a new one fits under keep.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	type trail struct {
		name string
		mod  time.Time
	}
	var trails []trail
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		trails = append(trails, trail{e.Name(), info.ModTime()})
	}

	sort.Slice(trails, func(i, j int) bool {
		return trails[i].mod.After(trails[j].mod)
	})

	for i := r.keep - 1; i < len(trails); i++ {
		_ = os.Remove(filepath.Join(r.basePath, trails[i].name))
	}
	return nil
}

// Close finishes the current file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.encoder = nil
	return err
}
