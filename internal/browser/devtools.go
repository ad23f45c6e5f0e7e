package browser

import (
	"context"
	"strings"

	"containernerd-mcp-server/internal/config"
	"containernerd-mcp-server/internal/container"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// rodDevtools issues DevTools calls through a connected rod browser.
type rodDevtools struct {
	browser *rod.Browser
	cfg     config.BrowserConfig
}

func (d *rodDevtools) client(ctx context.Context) *rod.Browser {
	return d.browser.Context(ctx).Timeout(d.cfg.CallTimeout())
}

func (d *rodDevtools) targets(ctx context.Context) ([]*proto.TargetTargetInfo, error) {
	res, err := proto.TargetGetTargets{}.Call(d.client(ctx))
	if err != nil {
		return nil, err
	}
	return res.TargetInfos, nil
}

func (d *rodDevtools) browserContexts(ctx context.Context) ([]proto.BrowserBrowserContextID, error) {
	res, err := proto.TargetGetBrowserContexts{}.Call(d.client(ctx))
	if err != nil {
		return nil, err
	}
	return res.BrowserContextIDs, nil
}

func (d *rodDevtools) closeTarget(ctx context.Context, id proto.TargetTargetID) error {
	_, err := proto.TargetCloseTarget{TargetID: id}.Call(d.client(ctx))
	return err
}

// domElement adapts a rod element to the resolver's Element.
type domElement struct {
	el *rod.Element
}

var _ container.Element = (*domElement)(nil)

func (e *domElement) Attribute(name string) (*string, error) {
	return e.el.Attribute(name)
}

func (e *domElement) HasClass(class string) (bool, error) {
	v, err := e.el.Attribute("class")
	if err != nil || v == nil {
		return false, err
	}
	for _, c := range strings.Fields(*v) {
		if c == class {
			return true, nil
		}
	}
	return false, nil
}

func (e *domElement) Parent() (container.Element, error) {
	top, err := e.el.Eval(`() => this.parentElement === null`)
	if err != nil {
		return nil, err
	}
	if top.Value.Bool() {
		return nil, nil
	}
	parent, err := e.el.Parent()
	if err != nil {
		return nil, err
	}
	return &domElement{el: parent}, nil
}
