package booking

import (
	"regexp"
	"strings"

	"github.com/ivikasavnish/salonbook/pkg/browser"
)

// Strategy is one named way of locating form controls: a CSS selector,
// optionally narrowed by visibility and by the element's text.
type Strategy struct {
	Name        string
	Selector    string
	Text        *regexp.Regexp
	Exclude     string // case-insensitive substring
	VisibleOnly bool
}

// Find returns every element the strategy accepts, in document order.
func (s Strategy) Find(page browser.Page) ([]browser.Element, error) {
	els, err := page.Elements(s.Selector)
	if err != nil {
		return nil, transport("query "+s.Name, err)
	}

	var out []browser.Element
	for _, el := range els {
		if s.VisibleOnly {
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}
		}
		if s.Text != nil || s.Exclude != "" {
			text, err := el.Text()
			if err != nil {
				continue
			}
			if s.Text != nil && !s.Text.MatchString(text) {
				continue
			}
			if s.Exclude != "" && strings.Contains(strings.ToLower(text), strings.ToLower(s.Exclude)) {
				continue
			}
		}
		out = append(out, el)
	}
	return out, nil
}

// Strategies are tried in order; the first one that yields elements wins.
type Strategies []Strategy

// Find returns the matches of the first productive strategy. A nil slice with a
// nil error means no strategy matched anything.
func (ss Strategies) Find(page browser.Page) ([]browser.Element, Strategy, error) {
	for _, s := range ss {
		els, err := s.Find(page)
		if err != nil {
			return nil, s, err
		}
		if len(els) > 0 {
			return els, s, nil
		}
	}
	return nil, Strategy{}, nil
}

// First returns the first element of the first productive strategy.
func (ss Strategies) First(page browser.Page) (browser.Element, Strategy, error) {
	els, s, err := ss.Find(page)
	if err != nil || len(els) == 0 {
		return nil, s, err
	}
	return els[0], s, nil
}

func textRe(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

// Selectors used against the DaySmart booking plugin.
const (
	selKendoDropdown   = "span.k-dropdown-wrap, span.k-picker-wrap"
	selBookingEvent    = "a.button.booking-event"
	selServiceInput    = `input.ui-combobox-input.ui-autocomplete-input[placeholder="Select Service"]`
	selSuggestion      = ".ui-menu-item"
	selTextInputs      = `input[type="text"], input:not([type])`
	selClientEmail     = `input[type="email"][name="clientEmail"]`
	selPhone           = `input[type="tel"]`
	selNotes           = "textarea"
	selContinue        = `a.button.booking-event[data-event="ProcessClientInfo"][data-submit="true"]`
	selCreateAccount   = `input[type="checkbox"][name*="createaccount" i], input[type="checkbox"][id*="createaccount" i]`
	selSubmitEvent     = `a.button.booking-event[data-event*="Book"][data-submit="true"], #btnBookAppointment`
	selDatePlaceholder = `input[placeholder*="Date"]`
)

const timeOfDay = `\d{1,2}:\d{2}\s*[AaPp][Mm]`

var (
	dateInputStrategies = Strategies{
		{Name: "date placeholder", Selector: selDatePlaceholder},
		{Name: "first text input", Selector: `input[type="text"]`},
	}

	// The Kendo wrappers are positional: 0 date, 1 time of day, 2 employee.
	dropdownStrategies = Strategies{
		{Name: "visible kendo dropdown", Selector: selKendoDropdown, VisibleOnly: true},
	}

	serviceInputStrategies = Strategies{
		{Name: "service autocomplete", Selector: selServiceInput},
	}

	suggestionStrategies = Strategies{
		{Name: "visible menu item", Selector: selSuggestion, VisibleOnly: true},
	}

	showTimesStrategies = Strategies{
		{Name: "show times link", Selector: selBookingEvent, Text: textRe(`(?i)show\s+available\s+times`), VisibleOnly: true},
	}

	timeSlotStrategies = Strategies{
		{Name: "time buttons", Selector: "button", Text: textRe(timeOfDay), VisibleOnly: true},
		{Name: "time links", Selector: "a", Text: textRe(timeOfDay), VisibleOnly: true},
		{Name: "role buttons", Selector: `div[role="button"]`, Text: textRe(`:`), VisibleOnly: true},
		{Name: "slot classes", Selector: `[class*="time-slot"], [class*="timeSlot"], [class*="appointment-time"]`, VisibleOnly: true},
		{Name: "any time-like button", Selector: "button", Text: textRe(`:|AM|PM`), Exclude: "Show Available", VisibleOnly: true},
	}

	customerTextStrategies = Strategies{
		{Name: "visible text inputs", Selector: selTextInputs, VisibleOnly: true},
	}

	emailStrategies = Strategies{
		{Name: "client email", Selector: selClientEmail, VisibleOnly: true},
	}

	phoneStrategies = Strategies{
		{Name: "tel input", Selector: selPhone, VisibleOnly: true},
	}

	notesStrategies = Strategies{
		{Name: "textarea", Selector: selNotes, VisibleOnly: true},
	}

	continueStrategies = Strategies{
		{Name: "process client info", Selector: selContinue, VisibleOnly: true},
	}

	createAccountStrategies = Strategies{
		{Name: "create account checkbox", Selector: selCreateAccount},
	}

	submitStrategies = Strategies{
		{Name: "book event", Selector: selSubmitEvent, VisibleOnly: true},
		{Name: "book button", Selector: "button", Text: textRe(`(?i)book`), VisibleOnly: true},
		{Name: "confirm button", Selector: "button", Text: textRe(`(?i)confirm`), VisibleOnly: true},
		{Name: "submit button", Selector: "button", Text: textRe(`(?i)submit`), VisibleOnly: true},
		{Name: "complete button", Selector: "button", Text: textRe(`(?i)complete`), VisibleOnly: true},
		{Name: "submit type button", Selector: `button[type="submit"]`, VisibleOnly: true},
		{Name: "submit type input", Selector: `input[type="submit"]`, VisibleOnly: true},
		{Name: "book role button", Selector: `[role="button"]`, Text: textRe(`(?i)book|confirm`), VisibleOnly: true},
	}
)
