package browser

import (
	"context"
	"time"
)

// Key identifies a keyboard key understood by the driver.
type Key string

const (
	KeyEnter     Key = "Enter"
	KeyEscape    Key = "Escape"
	KeyTab       Key = "Tab"
	KeyArrowDown Key = "ArrowDown"
)

// Config represents browser launch options
type Config struct {
	Headless bool          `json:"headless" yaml:"headless"`
	SlowMo   time.Duration `json:"slow_mo" yaml:"slow_mo"`
	ViewPort *ViewPort     `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	BinPath  string        `json:"bin_path,omitempty" yaml:"bin_path,omitempty"`
	// Timeout bounds every single page or element action. Zero means none.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// ViewPort represents browser viewport settings
type ViewPort struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// DefaultViewPort is the window size the booking form is laid out for.
var DefaultViewPort = ViewPort{Width: 1280, Height: 900}

// Element is a handle to one DOM node on a page.
type Element interface {
	Text() (string, error)
	// Attribute returns "" when the attribute is absent.
	Attribute(name string) (string, error)
	Visible() (bool, error)
	Checked() (bool, error)
	Click() error
	// Fill clears the control and sets its value in one step.
	Fill(text string) error
	// Type focuses the element and sends text one key at a time.
	Type(ctx context.Context, text string, delay time.Duration) error
	Press(key Key) error
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and blocks until the network goes idle.
	Navigate(ctx context.Context, url string) error
	// Elements returns every node matching a CSS selector without waiting.
	Elements(selector string) ([]Element, error)
	Press(key Key) error
	Type(ctx context.Context, text string, delay time.Duration) error
	Screenshot() ([]byte, error)
}

// Session owns a browser process and its page.
type Session interface {
	Page() Page
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context, cfg Config) (Session, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, cfg Config) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context, cfg Config) (Session, error) {
	return f(ctx, cfg)
}
