package mcp

import (
	"context"
)

// LaunchBrowserTool starts Chrome using the configured launch command.
type LaunchBrowserTool struct {
	browser Browser
}

func (t *LaunchBrowserTool) Name() string { return "launch-browser" }
func (t *LaunchBrowserTool) Description() string {
	return `Start or attach to the Chrome instance whose browser contexts are managed as containers.

CALL THIS FIRST before listing or deleting containers.

WHAT IT DOES:
- Connects to browser.debugger_url, or launches browser.launch
- Idempotent: safe to call if already running

Returns: {status: "started"|"already_connected", control_url}`
}
func (t *LaunchBrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *LaunchBrowserTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	if t.browser.IsConnected() {
		return map[string]interface{}{
			"status":      "already_connected",
			"control_url": t.browser.ControlURL(),
		}, nil
	}

	if err := t.browser.Start(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":      "started",
		"control_url": t.browser.ControlURL(),
	}, nil
}

// ShutdownBrowserTool closes the browser connection.
type ShutdownBrowserTool struct {
	browser Browser
}

func (t *ShutdownBrowserTool) Name() string { return "shutdown-browser" }
func (t *ShutdownBrowserTool) Description() string {
	return `Disconnect from Chrome and forget tab handles.

The container registry and the Mangle fact buffer are kept.`
}
func (t *ShutdownBrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ShutdownBrowserTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	if err := t.browser.Shutdown(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status": "stopped",
	}, nil
}
