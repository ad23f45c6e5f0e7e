package recorder

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderRotation(t *testing.T) {
	tempDir := t.TempDir()

	r, err := NewRecorder(tempDir, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for i := 0; i < 5; i++ {
		if err := r.Start("serve"); err != nil {
			t.Fatal(err)
		}
		r.Log("container_delete", "ctx-1", map[string]string{"state": "deleted"})
		time.Sleep(10 * time.Millisecond) // distinct mod times
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 files, got %d", len(entries))
	}
}

func TestRecorderLogging(t *testing.T) {
	tempDir := t.TempDir()

	r, err := NewRecorder(tempDir, 0)
	if err != nil {
		t.Fatal(err)
	}

	// Logging before Start is dropped.
	r.Log("container_delete", "ctx-0", "ignored")

	if err := r.Start("serve"); err != nil {
		t.Fatal(err)
	}
	if r.Path() == "" {
		t.Fatal("expected an open audit file")
	}
	r.Log("container_delete", "ctx-42", map[string]interface{}{"state": "deleted", "removed": []int{1, 2, 3}})
	r.Log("container_delete", "ctx-99", map[string]interface{}{"state": "aborted", "reason": "suspicious"})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(tempDir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ContainerID != "ctx-42" || events[1].ContainerID != "ctx-99" {
		t.Errorf("unexpected container ids: %q, %q", events[0].ContainerID, events[1].ContainerID)
	}
}
