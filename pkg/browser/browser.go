package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// networkIdle is how long the page must stay without in-flight requests
// before a navigation counts as settled.
const networkIdle = 500 * time.Millisecond

var rodKeys = map[Key]input.Key{
	KeyEnter:     input.Enter,
	KeyEscape:    input.Escape,
	KeyTab:       input.Tab,
	KeyArrowDown: input.ArrowDown,
}

// RodLauncher launches a local Chromium through rod's launcher.
type RodLauncher struct {
	logger *zerolog.Logger
}

// RodOption configures a RodLauncher.
type RodOption func(*RodLauncher)

// WithLogger sets a custom logger for launched sessions
func WithLogger(logger *zerolog.Logger) RodOption {
	return func(l *RodLauncher) {
		l.logger = logger
	}
}

// NewRodLauncher creates a launcher for real browser sessions
func NewRodLauncher(opts ...RodOption) *RodLauncher {
	nop := zerolog.Nop()
	l := &RodLauncher{logger: &nop}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts a browser process and opens a single page sized to cfg.ViewPort.
func (l *RodLauncher) Launch(ctx context.Context, cfg Config) (Session, error) {
	ln := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.BinPath != "" {
		ln = ln.Bin(cfg.BinPath)
	}

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().Context(ctx).ControlURL(controlURL)
	if cfg.SlowMo > 0 {
		b = b.SlowMotion(cfg.SlowMo)
	}
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	s := &rodSession{browser: b, launcher: ln, logger: l.logger}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	vp := DefaultViewPort
	if cfg.ViewPort != nil {
		vp = *cfg.ViewPort
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	s.page = &rodPage{page: page, timeout: cfg.Timeout}
	l.logger.Debug().
		Bool("headless", cfg.Headless).
		Dur("slow_mo", cfg.SlowMo).
		Dur("action_timeout", cfg.Timeout).
		Msg("browser session started")
	return s, nil
}

type rodSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rodPage
	logger   *zerolog.Logger
}

func (s *rodSession) Page() Page {
	return s.page
}

// Close shuts the browser down and removes the launcher's profile directory.
func (s *rodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	s.logger.Debug().Msg("browser session closed")
	if err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// keyTyper sends a full keydown/keyup pair for every key.
type keyTyper interface {
	Type(keys ...input.Key) error
}

var (
	_ keyTyper = (*rod.Keyboard)(nil)
	_ keyTyper = (*rod.Element)(nil)
)

func pressKey(kt keyTyper, key Key) error {
	k, ok := rodKeys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return kt.Type(k)
}

// actionContext bounds a single driver call by d. Zero d only adds a cancel.
func actionContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if d > 0 {
		return context.WithTimeout(parent, d)
	}
	return context.WithCancel(parent)
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) scoped(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := actionContext(ctx, p.timeout)
	return p.page.Context(ctx), cancel
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page, cancel := p.scoped(ctx)
	defer cancel()

	wait := page.WaitRequestIdle(networkIdle, nil, nil, nil)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	wait()
	return nil
}

func (p *rodPage) Elements(selector string) ([]Element, error) {
	page, cancel := p.scoped(p.page.GetContext())
	defer cancel()

	found, err := page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	els := make([]Element, len(found))
	for i, el := range found {
		// Re-bind to the long-lived page context; the scoped one ends here.
		els[i] = &rodElement{el: el.Context(p.page.GetContext()), page: p.page, timeout: p.timeout}
	}
	return els, nil
}

func (p *rodPage) Press(key Key) error {
	return pressKey(p.page.Keyboard, key)
}

func (p *rodPage) Type(ctx context.Context, text string, delay time.Duration) error {
	page, cancel := p.scoped(ctx)
	defer cancel()
	return typeRunes(page.GetContext(), text, delay, keySender(page))
}

func (p *rodPage) Screenshot() ([]byte, error) {
	page, cancel := p.scoped(p.page.GetContext())
	defer cancel()
	return page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

type rodElement struct {
	el      *rod.Element
	page    *rod.Page
	timeout time.Duration
}

func (e *rodElement) scoped() (*rod.Element, context.CancelFunc) {
	ctx, cancel := actionContext(e.el.GetContext(), e.timeout)
	return e.el.Context(ctx), cancel
}

func (e *rodElement) Text() (string, error) {
	el, cancel := e.scoped()
	defer cancel()
	return el.Text()
}

func (e *rodElement) Attribute(name string) (string, error) {
	el, cancel := e.scoped()
	defer cancel()
	v, err := el.Attribute(name)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

func (e *rodElement) Visible() (bool, error) {
	el, cancel := e.scoped()
	defer cancel()
	return el.Visible()
}

func (e *rodElement) Checked() (bool, error) {
	el, cancel := e.scoped()
	defer cancel()
	v, err := el.Property("checked")
	if err != nil {
		return false, err
	}
	return v.Bool(), nil
}

func (e *rodElement) Click() error {
	el, cancel := e.scoped()
	defer cancel()
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Fill(text string) error {
	el, cancel := e.scoped()
	defer cancel()
	if err := el.Focus(); err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if err := el.Type(input.Backspace); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return el.Input(text)
}

func (e *rodElement) Type(ctx context.Context, text string, delay time.Duration) error {
	el, cancel := e.scoped()
	err := el.Focus()
	cancel()
	if err != nil {
		return err
	}
	page, cancel := (&rodPage{page: e.page, timeout: e.timeout}).scoped(ctx)
	defer cancel()
	return typeRunes(page.GetContext(), text, delay, keySender(page))
}

func (e *rodElement) Press(key Key) error {
	el, cancel := e.scoped()
	defer cancel()
	return pressKey(el, key)
}

// keySender sends printable ASCII as key events so autocomplete widgets see
// keydown/keyup; anything outside the US layout is inserted as text.
func keySender(page *rod.Page) func(r rune) error {
	return func(r rune) error {
		if r >= ' ' && r <= '~' {
			return page.Keyboard.Type(input.Key(r))
		}
		return page.InsertText(string(r))
	}
}

// typeRunes feeds text to send one rune at a time, pausing delay between
// runes. It stops as soon as ctx is done.
func typeRunes(ctx context.Context, text string, delay time.Duration, send func(r rune) error) error {
	for _, r := range text {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := send(r); err != nil {
			return fmt.Errorf("type %q: %w", r, err)
		}
		if delay <= 0 {
			continue
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
