package booking

import (
	"context"
	"strings"

	"github.com/ivikasavnish/salonbook/pkg/browser"
)

func (s *Sequencer) loadPage(ctx context.Context, r *bookingRun) (outcome, error) {
	if err := r.page.Navigate(ctx, r.req.URL); err != nil {
		return outcome{}, transport("navigate", err)
	}
	if err := wait(ctx, s.timings.PageSettle); err != nil {
		return outcome{}, err
	}
	return done(r.req.URL), nil
}

// setDate types the date and then dismisses the calendar popup with Escape
// followed by Tab.
func (s *Sequencer) setDate(ctx context.Context, r *bookingRun) (outcome, error) {
	input, strategy, err := dateInputStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if input == nil {
		return outcome{}, &ElementNotFoundError{Control: "date input"}
	}

	if err := input.Fill(r.req.Date); err != nil {
		return outcome{}, transport("fill date", err)
	}
	if err := wait(ctx, s.timings.FieldPause); err != nil {
		return outcome{}, err
	}
	if err := r.page.Press(browser.KeyEscape); err != nil {
		return outcome{}, transport("press escape", err)
	}
	if err := wait(ctx, s.timings.KeyPause); err != nil {
		return outcome{}, err
	}
	if err := r.page.Press(browser.KeyTab); err != nil {
		return outcome{}, transport("press tab", err)
	}
	if err := wait(ctx, s.timings.FieldPause); err != nil {
		return outcome{}, err
	}
	return done(r.req.Date + " via " + strategy.Name), nil
}

// selectTimePreference opens the second visible Kendo dropdown and moves
// down to the option whose position equals the preference value.
func (s *Sequencer) selectTimePreference(ctx context.Context, r *bookingRun) (outcome, error) {
	if s.mode != TimePreferenceKeyboard {
		return skip("form default kept"), nil
	}
	if err := wait(ctx, s.timings.FieldPause); err != nil {
		return outcome{}, err
	}

	dropdowns, _, err := dropdownStrategies.Find(r.page)
	if err != nil {
		return outcome{}, err
	}
	if len(dropdowns) < 2 {
		notFound := &ElementNotFoundError{Control: "time preference dropdown"}
		r.log.Warn().Int("visible_dropdowns", len(dropdowns)).Msg(notFound.Error())
		return skip(notFound.Error()), nil
	}

	if err := dropdowns[1].Click(); err != nil {
		return outcome{}, transport("open time dropdown", err)
	}
	if err := wait(ctx, s.timings.FieldPause); err != nil {
		return outcome{}, err
	}

	presses := 1 + int(r.req.TimePreference)
	for i := 0; i < presses; i++ {
		if err := r.page.Press(browser.KeyArrowDown); err != nil {
			return outcome{}, transport("press arrow down", err)
		}
		pause := s.timings.OptionPause
		if i == 0 {
			pause = s.timings.KeyPause
		}
		if err := wait(ctx, pause); err != nil {
			return outcome{}, err
		}
	}
	if err := r.page.Press(browser.KeyEnter); err != nil {
		return outcome{}, transport("press enter", err)
	}
	if err := wait(ctx, s.timings.FieldPause); err != nil {
		return outcome{}, err
	}
	return done(r.req.TimePreference.String()), nil
}

// selectService types into the autocomplete and picks a suggestion: exact
// match first, then the first suggestion, then Enter on the input.
func (s *Sequencer) selectService(ctx context.Context, r *bookingRun) (outcome, error) {
	if err := wait(ctx, s.timings.ControlPause); err != nil {
		return outcome{}, err
	}

	input, _, err := serviceInputStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if input == nil {
		notFound := &ElementNotFoundError{Control: "service input"}
		r.log.Warn().Msg(notFound.Error())
		return skip(notFound.Error()), nil
	}

	if err := input.Click(); err != nil {
		return outcome{}, transport("focus service input", err)
	}
	if err := wait(ctx, s.timings.FieldPause); err != nil {
		return outcome{}, err
	}
	if err := input.Fill(""); err != nil {
		return outcome{}, transport("clear service input", err)
	}
	if err := input.Type(ctx, r.req.Service, s.timings.ServiceKeyDelay); err != nil {
		return outcome{}, transport("type service", err)
	}
	if err := wait(ctx, s.timings.ControlPause); err != nil {
		return outcome{}, err
	}

	options, _, err := suggestionStrategies.Find(r.page)
	if err != nil {
		return outcome{}, err
	}

	want := normalizeLabel(r.req.Service)
	for _, opt := range options {
		label, err := opt.Text()
		if err != nil || normalizeLabel(label) != want {
			continue
		}
		if err := opt.Click(); err != nil {
			return outcome{}, transport("click service option", err)
		}
		return done("exact match"), wait(ctx, s.timings.FieldPause)
	}

	if len(options) > 0 {
		r.log.Warn().Int("suggestions", len(options)).Msg("no exact service match, taking first suggestion")
		if err := options[0].Click(); err != nil {
			return outcome{}, transport("click service option", err)
		}
		return done("first suggestion"), wait(ctx, s.timings.FieldPause)
	}

	r.log.Warn().Msg("no service suggestions rendered, confirming with enter")
	if err := input.Press(browser.KeyEnter); err != nil {
		return outcome{}, transport("confirm service", err)
	}
	return done("confirmed with enter"), wait(ctx, s.timings.FieldPause)
}

// selectEmployee uses the third visible Kendo dropdown. The typed name is
// confirmed with Enter and not verified.
func (s *Sequencer) selectEmployee(ctx context.Context, r *bookingRun) (outcome, error) {
	if err := wait(ctx, s.timings.ControlPause); err != nil {
		return outcome{}, err
	}

	dropdowns, _, err := dropdownStrategies.Find(r.page)
	if err != nil {
		return outcome{}, err
	}
	if len(dropdowns) < 3 {
		notFound := &ElementNotFoundError{Control: "employee dropdown"}
		r.log.Warn().Int("visible_dropdowns", len(dropdowns)).Msg(notFound.Error())
		return skip(notFound.Error()), nil
	}

	if err := dropdowns[2].Click(); err != nil {
		return outcome{}, transport("open employee dropdown", err)
	}
	if err := wait(ctx, s.timings.ControlPause); err != nil {
		return outcome{}, err
	}
	if err := r.page.Type(ctx, r.req.Employee, s.timings.EmployeeKeyDelay); err != nil {
		return outcome{}, transport("type employee", err)
	}
	if err := wait(ctx, s.timings.ControlPause); err != nil {
		return outcome{}, err
	}
	if err := r.page.Press(browser.KeyEnter); err != nil {
		return outcome{}, transport("confirm employee", err)
	}
	return done(r.req.Employee), wait(ctx, s.timings.FieldPause)
}

func (s *Sequencer) showTimes(ctx context.Context, r *bookingRun) (outcome, error) {
	btn, _, err := showTimesStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if btn == nil {
		notFound := &ElementNotFoundError{Control: "show available times button"}
		r.log.Warn().Msg(notFound.Error())
		return skip(notFound.Error()), nil
	}
	if err := btn.Click(); err != nil {
		return outcome{}, transport("click show times", err)
	}
	return done(""), wait(ctx, s.timings.ResultsWait)
}

func (s *Sequencer) selectSlot(ctx context.Context, r *bookingRun) (outcome, error) {
	if err := wait(ctx, s.timings.SlotRenderWait); err != nil {
		return outcome{}, err
	}

	els, strategy, err := timeSlotStrategies.Find(r.page)
	if err != nil {
		return outcome{}, err
	}

	cands := make([]SlotCandidate, 0, len(els))
	for _, el := range els {
		label, err := el.Text()
		if err != nil {
			continue
		}
		cands = append(cands, newSlotCandidate(label, el))
	}

	idx, kind, err := SelectSlot(cands, r.req.SpecificTime, r.req.TimeSlotIndex)
	if err != nil {
		return outcome{}, err
	}
	chosen := cands[idx]
	if r.req.SpecificTime != "" && kind == MatchIndex {
		r.log.Warn().Str("requested", r.req.SpecificTime).Msg("requested time not usable, falling back to slot index")
	}

	r.log.Info().
		Str("strategy", strategy.Name).
		Int("candidates", len(cands)).
		Str("slot", chosen.Text).
		Str("match", string(kind)).
		Msg("clicking time slot")
	if err := chosen.Element.Click(); err != nil {
		return outcome{}, transport("click time slot", err)
	}
	r.result.SelectedSlot = chosen.Text
	r.result.Match = kind
	return done(chosen.Text + " (" + string(kind) + ")"), wait(ctx, s.timings.ControlPause)
}

type nameField int

const (
	nameUnknown nameField = iota
	nameFirst
	nameLast
)

// routeNameField decides which name an input takes from its concatenated
// name, id and placeholder attributes.
func routeNameField(identifier string) nameField {
	id := strings.ToLower(identifier)
	switch {
	case strings.Contains(id, "first") && !strings.Contains(id, "last"):
		return nameFirst
	case strings.Contains(id, "last"):
		return nameLast
	}
	return nameUnknown
}

func (s *Sequencer) fillCustomerInfo(ctx context.Context, r *bookingRun) (outcome, error) {
	if err := wait(ctx, s.timings.FormWait); err != nil {
		return outcome{}, err
	}
	info := r.req.Customer
	var filled []string

	inputs, _, err := customerTextStrategies.Find(r.page)
	if err != nil {
		return outcome{}, err
	}
	for _, in := range inputs {
		var b strings.Builder
		for _, attr := range []string{"name", "id", "placeholder"} {
			v, _ := in.Attribute(attr)
			b.WriteString(v)
		}
		switch routeNameField(b.String()) {
		case nameFirst:
			if err := in.Fill(info.FirstName); err != nil {
				return outcome{}, transport("fill first name", err)
			}
			filled = append(filled, "first name")
		case nameLast:
			if err := in.Fill(info.LastName); err != nil {
				return outcome{}, transport("fill last name", err)
			}
			filled = append(filled, "last name")
		}
	}

	email, _, err := emailStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if email != nil {
		if err := email.Fill(info.Email); err != nil {
			return outcome{}, transport("fill email", err)
		}
		filled = append(filled, "email")
	} else {
		r.log.Warn().Msg((&ElementNotFoundError{Control: "clientEmail input"}).Error())
	}

	phone, _, err := phoneStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if phone != nil {
		if err := phone.Fill(info.Phone); err != nil {
			return outcome{}, transport("fill phone", err)
		}
		filled = append(filled, "phone")
	}

	if info.Notes != "" {
		notes, _, err := notesStrategies.First(r.page)
		if err != nil {
			return outcome{}, err
		}
		if notes != nil {
			if err := notes.Fill(info.Notes); err != nil {
				return outcome{}, transport("fill notes", err)
			}
			filled = append(filled, "notes")
		}
	}

	cont, _, err := continueStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if cont == nil {
		return outcome{}, &NoCandidateError{What: "continue control"}
	}
	if err := cont.Click(); err != nil {
		return outcome{}, transport("click continue", err)
	}
	return done("filled " + strings.Join(filled, ", ")), wait(ctx, s.timings.ContinueWait)
}

func (s *Sequencer) submit(ctx context.Context, r *bookingRun) (outcome, error) {
	box, _, err := createAccountStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if box != nil {
		if checked, err := box.Checked(); err == nil && checked {
			if err := box.Click(); err != nil {
				return outcome{}, transport("uncheck create account", err)
			}
			r.log.Info().Msg("unchecked create account")
		}
	}

	btn, strategy, err := submitStrategies.First(r.page)
	if err != nil {
		return outcome{}, err
	}
	if btn == nil {
		return outcome{}, &NoCandidateError{What: "submit control"}
	}
	if err := btn.Click(); err != nil {
		return outcome{}, transport("click submit", err)
	}
	return done("via " + strategy.Name), nil
}

// awaitConfirmation leaves the confirmation page up long enough to be
// observed before the session is torn down.
func (s *Sequencer) awaitConfirmation(ctx context.Context, r *bookingRun) (outcome, error) {
	if err := wait(ctx, s.timings.ConfirmationWait); err != nil {
		return outcome{}, err
	}
	if err := wait(ctx, s.timings.Observation); err != nil {
		return outcome{}, err
	}
	return done(""), nil
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
