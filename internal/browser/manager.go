package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"containernerd-mcp-server/internal/config"
	"containernerd-mcp-server/internal/container"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/sync/errgroup"
)

// ErrNotConnected is returned by tab operations before Start succeeds.
var ErrNotConnected = errors.New("browser not connected")

// devtools is the slice of the DevTools protocol the manager needs.
type devtools interface {
	targets(ctx context.Context) ([]*proto.TargetTargetInfo, error)
	browserContexts(ctx context.Context) ([]proto.BrowserBrowserContextID, error)
	closeTarget(ctx context.Context, id proto.TargetTargetID) error
}

// Manager owns the Chrome connection and exposes its browser contexts as
// containers and its page targets as tabs.
type Manager struct {
	cfg        config.BrowserConfig
	mu         sync.RWMutex
	browser    *rod.Browser
	cdp        devtools
	controlURL string
	tabs       *tabTable

	// launched is set when Start spawned Chrome itself. Only a launched
	// browser is closed on shutdown; an attached one is left running.
	launched   bool
	disconnect context.CancelFunc
}

func NewManager(cfg config.BrowserConfig) *Manager {
	return &Manager{
		cfg:  cfg,
		tabs: newTabTable(),
	}
}

// Start connects to an existing Chrome or launches a new one using Rod's launcher.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		log.Printf("Stale browser connection detected, reconnecting...")
		_ = m.release()
	}

	controlURL := m.cfg.DebuggerURL
	launched := false
	if controlURL == "" && len(m.cfg.Launch) > 0 {
		bin := m.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless())
		for _, rawFlag := range m.cfg.Launch[1:] {
			name, val, hasVal := strings.Cut(strings.TrimLeft(rawFlag, "-"), "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Fallback: let Rod pick the port and defaults.
			alt, altErr := launcher.New().Bin(bin).Headless(m.cfg.IsHeadless()).Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			url = alt
		}
		controlURL = url
		launched = true
	}

	if controlURL == "" {
		return errors.New("no debugger_url or launch command provided")
	}

	connCtx, disconnect := context.WithCancel(ctx)
	b := rod.New().ControlURL(controlURL).Context(connCtx)
	if err := b.Connect(); err != nil {
		disconnect()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = b
	m.cdp = &rodDevtools{browser: b, cfg: m.cfg}
	m.controlURL = controlURL
	m.launched = launched
	m.disconnect = disconnect
	log.Printf("Browser connected at %s", controlURL)
	return nil
}

// ControlURL returns the WebSocket debugger URL for the connected browser.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether the browser is currently connected.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cdp != nil
}

// Shutdown drops the browser connection. Chrome itself is closed only when
// the manager launched it; an attached browser keeps all of its tabs.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.release()
	log.Printf("Browser shutdown complete")
	return err
}

// release must be called with mu held.
func (m *Manager) release() error {
	var err error
	if m.browser != nil && m.launched {
		err = m.browser.Close()
	}
	if m.disconnect != nil {
		m.disconnect()
	}
	m.browser = nil
	m.cdp = nil
	m.controlURL = ""
	m.launched = false
	m.disconnect = nil
	m.tabs = newTabTable()
	return err
}

// conn snapshots the connection and its tab table under the read lock.
// Callers keep using the snapshot even if Shutdown swaps both out.
func (m *Manager) conn() (devtools, *tabTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cdp == nil {
		return nil, nil, ErrNotConnected
	}
	return m.cdp, m.tabs, nil
}

// QueryTabs lists page targets. An empty filter matches every tab, the same
// way the browser treats a query without a context.
func (m *Manager) QueryTabs(ctx context.Context, filter container.TabFilter) ([]container.Tab, error) {
	cdp, table, err := m.conn()
	if err != nil {
		return nil, err
	}
	return queryTabs(ctx, cdp, table, filter)
}

func queryTabs(ctx context.Context, cdp devtools, table *tabTable, filter container.TabFilter) ([]container.Tab, error) {
	infos, err := cdp.targets(ctx)
	if err != nil {
		return nil, fmt.Errorf("get targets: %w", err)
	}

	tabs := make([]container.Tab, 0, len(infos))
	for _, info := range infos {
		if info == nil || string(info.Type) != "page" {
			continue
		}
		owner := container.ID(info.BrowserContextID)
		if filter.ContainerID != "" && owner != filter.ContainerID {
			continue
		}
		tabs = append(tabs, container.Tab{
			ID:          table.handle(info.TargetID),
			ContainerID: owner,
			URL:         info.URL,
			Title:       info.Title,
		})
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i].ID < tabs[j].ID })
	return tabs, nil
}

// RemoveTabs closes the given tabs with bounded concurrency. Tabs the browser
// no longer knows count as removed; every other failure is reported through
// a *container.PartialRemovalError.
func (m *Manager) RemoveTabs(ctx context.Context, ids []int) error {
	cdp, table, err := m.conn()
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		removed []int
		failed  = make(map[int]error)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.GetCloseConcurrency())
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := closeTab(gctx, cdp, table, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[id] = err
				return nil
			}
			removed = append(removed, id)
			return nil
		})
	}
	_ = g.Wait()

	sort.Ints(removed)
	if len(failed) > 0 {
		return &container.PartialRemovalError{Removed: removed, Failed: failed}
	}
	return nil
}

func closeTab(ctx context.Context, cdp devtools, table *tabTable, id int) error {
	targetID, ok := table.target(id)
	if !ok {
		return fmt.Errorf("unknown tab handle %d", id)
	}
	if err := cdp.closeTarget(ctx, targetID); err != nil {
		if isTargetGone(err) {
			log.Printf("[tab:%d] already closed", id)
			table.forget(targetID)
			return nil
		}
		return fmt.Errorf("close target %s: %w", targetID, err)
	}
	table.forget(targetID)
	return nil
}

// Discover lists the browser contexts and their page targets and refreshes
// the registry with the result. The default context is not a container.
func (m *Manager) Discover(ctx context.Context, registry *container.Registry) ([]container.Record, error) {
	cdp, table, err := m.conn()
	if err != nil {
		return nil, err
	}

	var (
		contexts []proto.BrowserBrowserContextID
		tabs     []container.Tab
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contexts, err = cdp.browserContexts(gctx)
		if err != nil {
			return fmt.Errorf("get browser contexts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tabs, err = queryTabs(gctx, cdp, table, container.TabFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[container.ID]int, len(contexts))
	for _, t := range tabs {
		counts[t.ContainerID]++
	}
	records := make([]container.Record, 0, len(contexts))
	for _, c := range contexts {
		id, err := container.ValidateString(string(c))
		if err != nil {
			continue
		}
		records = append(records, container.Record{ID: id, TabCount: counts[id]})
	}
	registry.Replace(records)
	return registry.List(), nil
}

// OriginElement finds the element a gesture landed on inside a page so the
// resolver can walk its ancestors.
func (m *Manager) OriginElement(ctx context.Context, targetID, selector string) (container.Element, error) {
	m.mu.RLock()
	b := m.browser
	m.mu.RUnlock()
	if b == nil {
		return nil, ErrNotConnected
	}

	page, err := b.PageFromTarget(proto.TargetTargetID(targetID))
	if err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}
	el, err := page.Context(ctx).Timeout(m.cfg.CallTimeout()).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q in target %s: %w", selector, targetID, err)
	}
	return &domElement{el: el.CancelTimeout()}, nil
}

func isTargetGone(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No target with given id") || strings.Contains(msg, "target not found")
}

// tabTable hands out stable integer handles for CDP target ids.
type tabTable struct {
	mu       sync.Mutex
	next     int
	byTarget map[proto.TargetTargetID]int
	byHandle map[int]proto.TargetTargetID
}

func newTabTable() *tabTable {
	return &tabTable{
		next:     1,
		byTarget: make(map[proto.TargetTargetID]int),
		byHandle: make(map[int]proto.TargetTargetID),
	}
}

func (t *tabTable) handle(id proto.TargetTargetID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.byTarget[id]; ok {
		return h
	}
	h := t.next
	t.next++
	t.byTarget[id] = h
	t.byHandle[h] = id
	return h
}

func (t *tabTable) target(h int) (proto.TargetTargetID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byHandle[h]
	return id, ok
}

func (t *tabTable) forget(id proto.TargetTargetID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.byTarget[id]; ok {
		delete(t.byHandle, h)
		delete(t.byTarget, id)
	}
}
