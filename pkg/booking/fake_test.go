package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ivikasavnish/salonbook/pkg/browser"
)

// actionLog is shared by a fake page and its elements so tests can assert
// on the overall interaction order.
type actionLog struct {
	mu       sync.Mutex
	entries  []string
	typeCtxs []context.Context
}

func (l *actionLog) typed(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.typeCtxs = append(l.typeCtxs, ctx)
	return ctx.Err()
}

func (l *actionLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *actionLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeElement struct {
	name    string
	text    string
	attrs   map[string]string
	hidden  bool
	checked bool
	value   string
	log     *actionLog
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(name string) (string, error) { return e.attrs[name], nil }

func (e *fakeElement) Visible() (bool, error) { return !e.hidden, nil }

func (e *fakeElement) Checked() (bool, error) { return e.checked, nil }

func (e *fakeElement) Click() error {
	e.checked = !e.checked
	e.log.add("click %s", e.name)
	return nil
}

func (e *fakeElement) Fill(text string) error {
	e.value = text
	e.log.add("fill %s=%s", e.name, text)
	return nil
}

func (e *fakeElement) Type(ctx context.Context, text string, _ time.Duration) error {
	if err := e.log.typed(ctx); err != nil {
		return err
	}
	e.value += text
	e.log.add("type %s=%s", e.name, text)
	return nil
}

func (e *fakeElement) Press(key browser.Key) error {
	e.log.add("press %s %s", e.name, key)
	return nil
}

type fakePage struct {
	els      map[string][]*fakeElement
	log      *actionLog
	navErr   error
	navigate string
}

func newFakePage() *fakePage {
	return &fakePage{els: map[string][]*fakeElement{}, log: &actionLog{}}
}

func (p *fakePage) add(selector string, el *fakeElement) *fakeElement {
	el.log = p.log
	p.els[selector] = append(p.els[selector], el)
	return el
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigate = url
	return p.navErr
}

func (p *fakePage) Elements(selector string) ([]browser.Element, error) {
	var out []browser.Element
	for _, el := range p.els[selector] {
		out = append(out, el)
	}
	return out, nil
}

func (p *fakePage) Press(key browser.Key) error {
	p.log.add("press page %s", key)
	return nil
}

func (p *fakePage) Type(ctx context.Context, text string, _ time.Duration) error {
	if err := p.log.typed(ctx); err != nil {
		return err
	}
	p.log.add("type page=%s", text)
	return nil
}

func (p *fakePage) Screenshot() ([]byte, error) {
	return []byte("\x89PNG"), nil
}

type fakeSession struct {
	page   *fakePage
	closed int
}

func (s *fakeSession) Page() browser.Page { return s.page }

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func launcherFor(sess *fakeSession, got *browser.Config) browser.Launcher {
	return browser.LauncherFunc(func(_ context.Context, cfg browser.Config) (browser.Session, error) {
		if got != nil {
			*got = cfg
		}
		return sess, nil
	})
}

func failingLauncher() browser.Launcher {
	return browser.LauncherFunc(func(context.Context, browser.Config) (browser.Session, error) {
		return nil, errors.New("chromium not found")
	})
}

// bookingForm lays out a page with every control the sequence touches.
func bookingForm() *fakePage {
	p := newFakePage()
	p.add(selDatePlaceholder, &fakeElement{name: "date"})
	p.add(selKendoDropdown, &fakeElement{name: "date-dropdown"})
	p.add(selKendoDropdown, &fakeElement{name: "time-dropdown"})
	p.add(selKendoDropdown, &fakeElement{name: "employee-dropdown"})
	p.add(selServiceInput, &fakeElement{name: "service"})
	p.add(selSuggestion, &fakeElement{name: "suggestion-deluxe", text: "Curly Cut Deluxe"})
	p.add(selSuggestion, &fakeElement{name: "suggestion-curly", text: " curly cut "})
	p.add(selBookingEvent, &fakeElement{name: "show-times", text: "Show Available Times"})
	p.add("button", &fakeElement{name: "slot-10am", text: "10:00 AM"})
	p.add("button", &fakeElement{name: "slot-2pm", text: "02:00 PM"})
	p.add("button", &fakeElement{name: "slot-3pm", text: "03:00 PM"})
	p.add(selTextInputs, &fakeElement{name: "first", attrs: map[string]string{"name": "FirstName", "id": "txtFirst"}})
	p.add(selTextInputs, &fakeElement{name: "last", attrs: map[string]string{"name": "LastName", "placeholder": "Last Name"}})
	p.add(selTextInputs, &fakeElement{name: "search", attrs: map[string]string{"name": "q"}})
	p.add(selClientEmail, &fakeElement{name: "email"})
	p.add(selPhone, &fakeElement{name: "phone"})
	p.add(selNotes, &fakeElement{name: "notes"})
	p.add(selContinue, &fakeElement{name: "continue"})
	p.add(selCreateAccount, &fakeElement{name: "create-account", checked: true})
	p.add(selSubmitEvent, &fakeElement{name: "book"})
	return p
}
