package mcp

import (
	"context"
	"fmt"
	"log"

	"containernerd-mcp-server/internal/config"
	"containernerd-mcp-server/internal/container"
)

// ListContainersTool refreshes and returns the container registry.
type ListContainersTool struct {
	browser   Browser
	registry  *container.Registry
	storePath string
}

func (t *ListContainersTool) Name() string { return "list-containers" }
func (t *ListContainersTool) Description() string {
	return `List known containers (browser contexts) with their cached tab counts.

When the browser is connected the registry is refreshed from the browser
first; otherwise the last known registry is returned.

Returns: {containers: [{id, name, tab_count, updated_at}], discovered}`
}
func (t *ListContainersTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListContainersTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	discovered := false
	if t.browser.IsConnected() {
		if _, err := t.browser.Discover(ctx, t.registry); err != nil {
			return nil, fmt.Errorf("discover containers: %w", err)
		}
		discovered = true
		if err := t.registry.Save(t.storePath); err != nil {
			log.Printf("[registry] save failed: %v", err)
		}
	}
	return map[string]interface{}{
		"containers": t.registry.List(),
		"discovered": discovered,
	}, nil
}

// ListTabsTool lists open tabs, optionally for one container.
type ListTabsTool struct {
	browser Browser
}

func (t *ListTabsTool) Name() string { return "list-tabs" }
func (t *ListTabsTool) Description() string {
	return `List open tabs with their owning container.

Pass container_id to restrict the list. Omit it to list every tab.

Returns: {tabs: [{id, container_id, url, title}], count}`
}
func (t *ListTabsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"container_id": map[string]interface{}{
				"type":        "string",
				"description": "Browser context id to filter by",
			},
		},
	}
}
func (t *ListTabsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var filter container.TabFilter
	if raw, ok := lookupStringArg(args, "container_id"); ok {
		id, err := container.ValidateString(raw)
		if err != nil {
			return nil, err
		}
		filter.ContainerID = id
	}

	tabs, err := t.browser.QueryTabs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"tabs":  tabs,
		"count": len(tabs),
	}, nil
}

// DeleteContainerTool runs the deletion pipeline for one gesture.
type DeleteContainerTool struct {
	browser   Browser
	deleter   *container.Deleter
	registry  *container.Registry
	attrs     config.ContainersConfig
	storePath string
}

func (t *DeleteContainerTool) Name() string { return "delete-container" }
func (t *DeleteContainerTool) Description() string {
	return `Delete a container: close exactly the tabs it owns and drop it from the registry.

The target is taken from container_id, or from the DOM element matched by
selector inside target_id (the element itself or its nearest container
section ancestor). confirm must be true; false means the user dismissed
the confirmation and nothing happens.

SAFETY:
- Placeholder ids ("", "undefined", "null") are rejected
- If the tab query for the container returns every open tab, the deletion
  is refused as suspicious and nothing is closed
- A second request for a container already being deleted is rejected

Returns: {success, outcome: {state, trail, container_id, owned, total, removed, failed, reason, notice}}`
}
func (t *DeleteContainerTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"container_id": map[string]interface{}{
				"type":        "string",
				"description": "Browser context id of the container",
			},
			"container_name": map[string]interface{}{
				"type":        "string",
				"description": "Display name used in the notice",
			},
			"target_id": map[string]interface{}{
				"type":        "string",
				"description": "CDP target id of the page holding the delete control",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector of the element the gesture fired on",
			},
			"confirm": map[string]interface{}{
				"type":        "boolean",
				"description": "Must be true to proceed",
			},
		},
		"required": []string{"confirm"},
	}
}
func (t *DeleteContainerTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ic := container.InteractionContext{Attributes: map[string]string{}}
	if v, ok := lookupStringArg(args, "container_id"); ok {
		ic.Attributes[t.idAttribute()] = v
	}
	if v, ok := lookupStringArg(args, "container_name"); ok {
		ic.Attributes[t.nameAttribute()] = v
	}

	targetID := getStringArg(args, "target_id")
	selector := getStringArg(args, "selector")
	if targetID != "" && selector != "" {
		el, err := t.browser.OriginElement(ctx, targetID, selector)
		if err != nil {
			// A stale gesture target is resolved like a missing attribute.
			log.Printf("[delete-container] origin element unavailable: %v", err)
		} else {
			ic.Origin = el
		}
	}

	o := t.deleter.Delete(ctx, container.DeleteRequest{
		Interaction: ic,
		Confirmed:   getBoolArg(args, "confirm", false),
	})
	if o.State == container.StateDeleted {
		if err := t.registry.Save(t.storePath); err != nil {
			log.Printf("[registry] save failed: %v", err)
		}
	}
	return map[string]interface{}{
		"success": o.State == container.StateDeleted,
		"outcome": o,
	}, nil
}

func (t *DeleteContainerTool) idAttribute() string {
	if t.attrs.IDAttribute != "" {
		return t.attrs.IDAttribute
	}
	return container.DefaultIDAttribute
}

func (t *DeleteContainerTool) nameAttribute() string {
	if t.attrs.NameAttribute != "" {
		return t.attrs.NameAttribute
	}
	return container.DefaultNameAttribute
}
