package main

import (
	"context"
	"fmt"
	"log"

	"containernerd-mcp-server/internal/browser"
	"containernerd-mcp-server/internal/config"
	"containernerd-mcp-server/internal/container"
	"containernerd-mcp-server/internal/mangle"
	"containernerd-mcp-server/internal/recorder"
)

// runtime holds the long-lived components every command shares.
type runtime struct {
	cfg      config.Config
	engine   *mangle.Engine
	browser  *browser.Manager
	registry *container.Registry
	recorder *recorder.Recorder
	deleter  *container.Deleter
}

func newRuntime(cfg config.Config, label string) (*runtime, error) {
	engine, err := mangle.NewEngine(cfg.Mangle)
	if err != nil {
		return nil, fmt.Errorf("initialize mangle engine: %w", err)
	}

	registry := container.NewRegistry()
	if err := registry.Load(cfg.Containers.RegistryStore); err != nil {
		log.Printf("[registry] could not load %s: %v", cfg.Containers.RegistryStore, err)
	}

	rt := &runtime{
		cfg:      cfg,
		engine:   engine,
		browser:  browser.NewManager(cfg.Browser),
		registry: registry,
	}

	dcfg := container.DeleterConfig{
		Resolver: container.NewResolver(container.ResolverOptions{
			IDAttribute:   cfg.Containers.IDAttribute,
			NameAttribute: cfg.Containers.NameAttribute,
			SectionClass:  cfg.Containers.SectionClass,
			MaxDepth:      cfg.Containers.MaxAncestorDepth,
		}),
		Notifier: container.LogNotifier{},
	}
	if cfg.Mangle.Enable {
		dcfg.Sink = engine
	}
	if cfg.Recorder.Enable {
		rec, err := recorder.NewRecorder(cfg.Recorder.Dir, cfg.Recorder.GetKeep())
		if err != nil {
			return nil, fmt.Errorf("initialize recorder: %w", err)
		}
		if err := rec.Start(label); err != nil {
			return nil, fmt.Errorf("start recorder: %w", err)
		}
		rt.recorder = rec
		dcfg.Events = rec
	}

	rt.deleter = container.NewDeleter(rt.browser, registry, dcfg)
	return rt, nil
}

// connect attaches to Chrome and refreshes the registry.
func (rt *runtime) connect(ctx context.Context) error {
	if err := rt.browser.Start(ctx); err != nil {
		return err
	}
	if _, err := rt.browser.Discover(ctx, rt.registry); err != nil {
		return fmt.Errorf("discover containers: %w", err)
	}
	return rt.registry.Save(rt.cfg.Containers.RegistryStore)
}

func (rt *runtime) close(ctx context.Context) {
	if rt.browser.IsConnected() {
		if err := rt.browser.Shutdown(ctx); err != nil {
			log.Printf("browser shutdown: %v", err)
		}
	}
	if rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			log.Printf("recorder close: %v", err)
		}
	}
}
