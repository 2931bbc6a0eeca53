package browse

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	errs "rfharvest/pkg/errors"
	"rfharvest/pkg/logger"
)

// Options configures the browser engine.
type Options struct {
	// Headless runs Chrome without a visible window
	Headless bool

	// UserAgent overrides the browser's user agent when non-empty
	UserAgent string
}

// Engine owns a Chrome process and hands out stealth pages. A single
// Engine serves the whole harvest run; pages are opened and closed per
// search term.
type Engine struct {
	opts     Options
	log      logger.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewEngine creates a browser engine. Call Start before opening pages.
func NewEngine(opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Engine{opts: opts, log: log}
}

// Start launches Chrome and connects to it
func (e *Engine) Start() error {
	l := launcher.New().
		Headless(e.opts.Headless).
		Set("disable-blink-features", "AutomationControlled")

	wsURL, err := l.Launch()
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("failed to launch browser: %v", err))
	}
	e.launcher = l

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		e.launcher = nil
		return errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("failed to connect to browser: %v", err))
	}
	e.browser = b

	e.log.DebugWithFields("Browser launched", map[string]interface{}{
		"headless": e.opts.Headless,
	})

	return nil
}

// NewPage opens a fresh stealth page
func (e *Engine) NewPage(ctx context.Context) (Page, error) {
	if e.browser == nil {
		return nil, errs.New(errs.ErrorTypeUnknown, "browser engine not started")
	}

	page, err := stealth.Page(e.browser)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("failed to open page: %v", err))
	}

	if e.opts.UserAgent != "" {
		override := &proto.NetworkSetUserAgentOverride{UserAgent: e.opts.UserAgent}
		if err := page.Context(ctx).SetUserAgent(override); err != nil {
			e.log.WithError(err).Warn("Failed to override user agent")
		}
	}

	metrics := &proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}
	if err := page.Context(ctx).SetViewport(metrics); err != nil {
		e.log.WithError(err).Warn("Failed to set viewport")
	}

	return &rodPage{page: page}, nil
}

// Close shuts down Chrome
func (e *Engine) Close() error {
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			e.log.WithError(err).Warn("Failed to close browser")
		}
		e.browser = nil
	}
	if e.launcher != nil {
		e.launcher.Cleanup()
		e.launcher = nil
	}
	return nil
}

// rodPage adapts *rod.Page to the Page interface
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return errs.New(errs.ErrorTypeNetwork, fmt.Sprintf("failed to navigate to %s: %v", url, err))
	}
	return nil
}

func (p *rodPage) WaitLoad(ctx context.Context) error {
	return p.page.Context(ctx).WaitLoad()
}

// Element waits for the selector to match, bounded by ctx. Dynamic pages
// render cards well after the load event, so waiting here is the norm.
func (p *rodPage) Element(ctx context.Context, selector string) (Element, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NotFound(selector)
	}
	return &rodElement{el: el}, nil
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("failed to query %s: %v", selector, err))
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return false, err
	}
	return has, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// rodElement adapts *rod.Element to the Element interface
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, error) {
	val, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}
	return *val, nil
}

func (e *rodElement) Element(ctx context.Context, selector string) (Element, error) {
	has, el, err := e.el.Context(ctx).Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, NotFound(selector)
	}
	return &rodElement{el: el}, nil
}

func (e *rodElement) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func (e *rodElement) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := e.el.Context(ctx).Has(selector)
	if err != nil {
		return false, err
	}
	return has, nil
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}
