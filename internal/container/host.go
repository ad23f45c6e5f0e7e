package container

import (
	"context"
	"fmt"
)

// Tab is a transient reference to a host tab. ContainerID is the owner the
// host reported. Default-context tabs carry the default context's own id,
// which is never a registered container.
type Tab struct {
	ID          int    `json:"id"`
	ContainerID ID     `json:"container_id,omitempty"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
}

// TabSet is the point-in-time result of a single ownership query.
type TabSet []Tab

// IDs returns the tab handles in query order.
func (s TabSet) IDs() []int {
	ids := make([]int, 0, len(s))
	for _, t := range s {
		ids = append(ids, t.ID)
	}
	return ids
}

// TabFilter narrows a tab query. The zero value matches every tab, which is
// exactly what a host does when handed a filter value it cannot interpret.
type TabFilter struct {
	ContainerID ID
}

// TabHost is the tab capability exposed by the host platform.
type TabHost interface {
	QueryTabs(ctx context.Context, filter TabFilter) ([]Tab, error)
	// RemoveTabs is best effort. Tabs that fail to close are reported through
	// a *PartialRemovalError.
	RemoveTabs(ctx context.Context, ids []int) error
}

// QueryOwnedTabs asks the host for the tabs owned by id. It performs no
// checks of its own: the result may be the whole tab population.
func QueryOwnedTabs(ctx context.Context, host TabHost, id ID) (TabSet, error) {
	tabs, err := host.QueryTabs(ctx, TabFilter{ContainerID: id})
	if err != nil {
		return nil, fmt.Errorf("query tabs for container %s: %w", id, err)
	}
	return TabSet(tabs), nil
}

// CountAllTabs runs an independent, unfiltered query and returns the
// population size.
func CountAllTabs(ctx context.Context, host TabHost) (int, error) {
	tabs, err := host.QueryTabs(ctx, TabFilter{})
	if err != nil {
		return 0, fmt.Errorf("query all tabs: %w", err)
	}
	return len(tabs), nil
}
