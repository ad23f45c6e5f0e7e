package container

import (
	"context"
	"errors"
	"sync"
)

// fakeHost is an in-memory TabHost. When broken is set, a filtered query
// returns every tab, like a host that could not interpret the filter. Tabs in
// opens appear right after the next filtered query.
type fakeHost struct {
	mu        sync.Mutex
	tabs      []Tab
	broken    bool
	queryErr  error
	removeErr error
	failIDs   map[int]bool
	removes   [][]int
	block     chan struct{}
	entered   chan struct{}
	opens     []Tab
}

func newFakeHost(tabs ...Tab) *fakeHost {
	return &fakeHost{tabs: tabs}
}

func (h *fakeHost) QueryTabs(_ context.Context, filter TabFilter) ([]Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.queryErr != nil {
		return nil, h.queryErr
	}
	out := make([]Tab, 0, len(h.tabs))
	for _, t := range h.tabs {
		if filter.ContainerID != "" && !h.broken && t.ContainerID != filter.ContainerID {
			continue
		}
		out = append(out, t)
	}
	if filter.ContainerID != "" && len(h.opens) > 0 {
		h.tabs = append(h.tabs, h.opens...)
		h.opens = nil
	}
	return out, nil
}

func (h *fakeHost) RemoveTabs(ctx context.Context, ids []int) error {
	h.mu.Lock()
	h.removes = append(h.removes, append([]int(nil), ids...))
	block, entered := h.block, h.entered
	h.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removeErr != nil {
		return h.removeErr
	}

	var removed []int
	failed := make(map[int]error)
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		if h.failIDs[id] {
			failed[id] = errors.New("tab refused to close")
			continue
		}
		drop[id] = true
		removed = append(removed, id)
	}
	kept := h.tabs[:0]
	for _, t := range h.tabs {
		if !drop[t.ID] {
			kept = append(kept, t)
		}
	}
	h.tabs = kept
	if len(failed) > 0 {
		return &PartialRemovalError{Removed: removed, Failed: failed}
	}
	return nil
}

func (h *fakeHost) removeCalls() [][]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([][]int(nil), h.removes...)
}

func (h *fakeHost) remaining() []Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Tab(nil), h.tabs...)
}

// fakeElement is a node in an in-memory UI tree.
type fakeElement struct {
	attrs   map[string]string
	classes []string
	parent  *fakeElement
	attrErr error
}

func (e *fakeElement) Attribute(name string) (*string, error) {
	if e.attrErr != nil {
		return nil, e.attrErr
	}
	v, ok := e.attrs[name]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (e *fakeElement) HasClass(class string) (bool, error) {
	for _, c := range e.classes {
		if c == class {
			return true, nil
		}
	}
	return false, nil
}

func (e *fakeElement) Parent() (Element, error) {
	if e.parent == nil {
		return nil, nil
	}
	return e.parent, nil
}

func section(id, name string, parent *fakeElement) *fakeElement {
	attrs := map[string]string{}
	if id != "" {
		attrs[DefaultIDAttribute] = id
	}
	if name != "" {
		attrs[DefaultNameAttribute] = name
	}
	return &fakeElement{attrs: attrs, classes: []string{"panel", DefaultSectionClass}, parent: parent}
}

func child(attrs map[string]string, parent *fakeElement) *fakeElement {
	return &fakeElement{attrs: attrs, parent: parent}
}

func strPtr(s string) *string { return &s }

// sampleTabs is two containers with two tabs each plus one default-context tab.
func sampleTabs() []Tab {
	return []Tab{
		{ID: 1, ContainerID: "ctx-work", URL: "https://a.example"},
		{ID: 2, ContainerID: "ctx-work", URL: "https://b.example"},
		{ID: 3, ContainerID: "ctx-shop", URL: "https://c.example"},
		{ID: 4, ContainerID: "ctx-shop", URL: "https://d.example"},
		{ID: 5, ContainerID: "default-ctx", URL: "https://e.example"},
	}
}
