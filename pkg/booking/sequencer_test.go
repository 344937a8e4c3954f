package booking

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivikasavnish/salonbook/pkg/browser"
	"github.com/ivikasavnish/salonbook/pkg/metrics"
)

func newTestSequencer(sess *fakeSession, opts ...Option) *Sequencer {
	opts = append([]Option{WithTimings(Timings{})}, opts...)
	return NewSequencer(launcherFor(sess, nil), opts...)
}

func stepStatuses(res *Result) map[string]string {
	out := map[string]string{}
	for _, st := range res.Steps {
		out[st.Name] = st.Status
	}
	return out
}

func TestBook_HappyPath(t *testing.T) {
	page := bookingForm()
	sess := &fakeSession{page: page}
	var launched browser.Config
	seq := NewSequencer(launcherFor(sess, &launched), WithTimings(Timings{}), WithViewPort(browser.DefaultViewPort))

	req := validRequest()
	res, err := seq.Book(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, req.URL, page.navigate)
	assert.Equal(t, 300*time.Millisecond, launched.SlowMo)
	require.NotNil(t, launched.ViewPort)
	assert.Equal(t, browser.DefaultViewPort, *launched.ViewPort)
	assert.Equal(t, DefaultActionTimeout, launched.Timeout)

	assert.Equal(t, []string{
		"fill date=02/02/2026",
		"press page Escape",
		"press page Tab",
		"click service",
		"fill service=",
		"type service=Curly Cut",
		"click suggestion-curly",
		"click employee-dropdown",
		"type page=First Available",
		"press page Enter",
		"click show-times",
		"click slot-2pm",
		"fill first=John",
		"fill last=Doe",
		"fill email=john@example.com",
		"fill phone=5199804247",
		"click continue",
		"click create-account",
		"click book",
	}, page.log.all())

	assert.Equal(t, "02:00 PM", res.SelectedSlot)
	assert.Equal(t, MatchExact, res.Match)
	require.Len(t, res.Steps, 10)
	assert.Equal(t, "load-page", res.Steps[0].Name)
	assert.Equal(t, "confirmation", res.Steps[9].Name)
	assert.Equal(t, browser.StepSkipped, stepStatuses(res)["time-preference"])
	assert.Equal(t, browser.StepOK, stepStatuses(res)["submit"])
	assert.False(t, res.FinishedAt.Before(res.StartedAt))
	assert.Equal(t, 1, sess.closed)
}

func TestBook_InvalidRequestNeverLaunches(t *testing.T) {
	launched := false
	seq := NewSequencer(browser.LauncherFunc(func(context.Context, browser.Config) (browser.Session, error) {
		launched = true
		return nil, nil
	}))

	res, err := seq.Book(context.Background(), Request{})
	assert.Nil(t, res)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "date")
	assert.False(t, launched)
}

func TestBook_LaunchFailure(t *testing.T) {
	seq := NewSequencer(failingLauncher())

	_, err := seq.Book(context.Background(), validRequest())
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "launch", stepErr.Step)
	var terr *TransportError
	assert.True(t, errors.As(err, &terr))
}

func TestBook_NoTimeSlots(t *testing.T) {
	page := bookingForm()
	delete(page.els, "button")
	sess := &fakeSession{page: page}

	res, err := newTestSequencer(sess).Book(context.Background(), validRequest())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "select-slot", stepErr.Step)
	var noCand *NoCandidateError
	assert.True(t, errors.As(err, &noCand))

	require.NotNil(t, res)
	require.Len(t, res.Steps, 7)
	assert.Equal(t, browser.StepFailed, res.Steps[6].Status)
	assert.NotContains(t, page.log.all(), "click continue")
	assert.Equal(t, 1, sess.closed)
}

func TestBook_MissingContinueControl(t *testing.T) {
	page := bookingForm()
	delete(page.els, selContinue)
	sess := &fakeSession{page: page}

	_, err := newTestSequencer(sess).Book(context.Background(), validRequest())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "customer-info", stepErr.Step)
	assert.EqualError(t, err, "step customer-info failed: no continue control found")
	assert.NotContains(t, page.log.all(), "click book")
	assert.Equal(t, 1, sess.closed)
}

func TestBook_MissingSubmitControl(t *testing.T) {
	page := bookingForm()
	delete(page.els, selSubmitEvent)
	sess := &fakeSession{page: page}

	_, err := newTestSequencer(sess).Book(context.Background(), validRequest())

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "submit", stepErr.Step)
	assert.EqualError(t, err, "step submit failed: no submit control found")
	assert.Equal(t, 1, sess.closed)
}

func TestBook_SubmitFallsBackToButtonText(t *testing.T) {
	page := bookingForm()
	delete(page.els, selSubmitEvent)
	page.add("button", &fakeElement{name: "book-button", text: "Book Appointment"})
	sess := &fakeSession{page: page}

	res, err := newTestSequencer(sess).Book(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Contains(t, page.log.all(), "click book-button")
	for _, st := range res.Steps {
		if st.Name == "submit" {
			assert.Equal(t, "via book button", st.Detail)
		}
	}
}

func TestBook_SubmitMatchesUpperCaseLabel(t *testing.T) {
	page := bookingForm()
	delete(page.els, selSubmitEvent)
	page.add("button", &fakeElement{name: "book-now", text: "BOOK NOW"})
	sess := &fakeSession{page: page}

	res, err := newTestSequencer(sess).Book(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Contains(t, page.log.all(), "click book-now")
	assert.Equal(t, browser.StepOK, stepStatuses(res)["submit"])
}

func TestBook_ShowTimesMatchesAnyCase(t *testing.T) {
	page := bookingForm()
	delete(page.els, selBookingEvent)
	page.add(selBookingEvent, &fakeElement{name: "show-times-upper", text: "SHOW AVAILABLE TIMES"})
	sess := &fakeSession{page: page}

	res, err := newTestSequencer(sess).Book(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Contains(t, page.log.all(), "click show-times-upper")
	assert.Equal(t, browser.StepOK, stepStatuses(res)["show-times"])
}

func TestBook_ActionTimeoutReachesLauncher(t *testing.T) {
	sess := &fakeSession{page: bookingForm()}
	var launched browser.Config
	seq := NewSequencer(launcherFor(sess, &launched), WithTimings(Timings{}), WithActionTimeout(5*time.Second))

	_, err := seq.Book(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, launched.Timeout)
}

type runKey struct{}

func TestBook_TypingUsesRunContext(t *testing.T) {
	page := bookingForm()
	sess := &fakeSession{page: page}
	ctx := context.WithValue(context.Background(), runKey{}, "run-1")

	_, err := newTestSequencer(sess).Book(ctx, validRequest())
	require.NoError(t, err)

	// Service autocomplete and employee dropdown.
	require.Len(t, page.log.typeCtxs, 2)
	for _, got := range page.log.typeCtxs {
		assert.Equal(t, "run-1", got.Value(runKey{}))
	}
}

func TestBook_DateInputMissing(t *testing.T) {
	page := bookingForm()
	delete(page.els, selDatePlaceholder)
	sess := &fakeSession{page: page}

	_, err := newTestSequencer(sess).Book(context.Background(), validRequest())

	var notFound *ElementNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "date input", notFound.Control)
	assert.Equal(t, 1, sess.closed)
}

func TestBook_ServiceFallbacks(t *testing.T) {
	t.Run("first suggestion", func(t *testing.T) {
		page := bookingForm()
		page.els[selSuggestion] = nil
		page.add(selSuggestion, &fakeElement{name: "suggestion-a", text: "Colour"})
		page.add(selSuggestion, &fakeElement{name: "suggestion-b", text: "Trim"})
		sess := &fakeSession{page: page}

		_, err := newTestSequencer(sess).Book(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Contains(t, page.log.all(), "click suggestion-a")
		assert.NotContains(t, page.log.all(), "click suggestion-b")
	})

	t.Run("hidden suggestions ignored", func(t *testing.T) {
		page := bookingForm()
		page.els[selSuggestion] = nil
		page.add(selSuggestion, &fakeElement{name: "suggestion-hidden", text: "Curly Cut", hidden: true})
		sess := &fakeSession{page: page}

		_, err := newTestSequencer(sess).Book(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Contains(t, page.log.all(), "press service Enter")
		assert.NotContains(t, page.log.all(), "click suggestion-hidden")
	})

	t.Run("service input missing", func(t *testing.T) {
		page := bookingForm()
		delete(page.els, selServiceInput)
		sess := &fakeSession{page: page}

		res, err := newTestSequencer(sess).Book(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Equal(t, browser.StepSkipped, stepStatuses(res)["select-service"])
	})
}

func TestBook_EmployeeDropdownMissing(t *testing.T) {
	page := bookingForm()
	page.els[selKendoDropdown][2].hidden = true
	sess := &fakeSession{page: page}

	res, err := newTestSequencer(sess).Book(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, browser.StepSkipped, stepStatuses(res)["select-employee"])
	assert.NotContains(t, page.log.all(), "type page=First Available")
}

func TestBook_KeyboardTimePreference(t *testing.T) {
	page := bookingForm()
	sess := &fakeSession{page: page}
	req := validRequest()
	req.TimePreference = Evening

	res, err := newTestSequencer(sess, WithTimePreferenceMode(TimePreferenceKeyboard)).Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, browser.StepOK, stepStatuses(res)["time-preference"])

	log := page.log.all()
	start := -1
	for i, entry := range log {
		if entry == "click time-dropdown" {
			start = i
			break
		}
	}
	require.GreaterOrEqual(t, start, 0)
	assert.Equal(t, []string{
		"click time-dropdown",
		"press page ArrowDown",
		"press page ArrowDown",
		"press page ArrowDown",
		"press page ArrowDown",
		"press page Enter",
	}, log[start:start+6])
}

func TestBook_SlotSelection(t *testing.T) {
	t.Run("hidden slot is not offered", func(t *testing.T) {
		page := bookingForm()
		page.els["button"][1].hidden = true
		sess := &fakeSession{page: page}

		res, err := newTestSequencer(sess).Book(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Equal(t, "03:00 PM", res.SelectedSlot)
		assert.Equal(t, MatchClosest, res.Match)
	})

	t.Run("index when no time requested", func(t *testing.T) {
		page := bookingForm()
		sess := &fakeSession{page: page}
		req := validRequest()
		req.SpecificTime = ""
		req.TimeSlotIndex = 5

		res, err := newTestSequencer(sess).Book(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "03:00 PM", res.SelectedSlot)
		assert.Equal(t, MatchIndex, res.Match)
	})

	t.Run("time links when no buttons", func(t *testing.T) {
		page := bookingForm()
		delete(page.els, "button")
		page.add("a", &fakeElement{name: "link-11am", text: "11:00 AM"})
		sess := &fakeSession{page: page}

		res, err := newTestSequencer(sess).Book(context.Background(), validRequest())
		require.NoError(t, err)
		assert.Equal(t, "11:00 AM", res.SelectedSlot)
		assert.Contains(t, page.log.all(), "click link-11am")
	})
}

func TestBook_NotesOnlyWhenGiven(t *testing.T) {
	page := bookingForm()
	sess := &fakeSession{page: page}
	req := validRequest()
	req.Customer.Notes = "first visit"

	_, err := newTestSequencer(sess).Book(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, page.log.all(), "fill notes=first visit")

	page = bookingForm()
	_, err = newTestSequencer(&fakeSession{page: page}).Book(context.Background(), validRequest())
	require.NoError(t, err)
	for _, entry := range page.log.all() {
		assert.NotContains(t, entry, "fill notes")
	}
}

func TestBook_UncheckedCreateAccountLeftAlone(t *testing.T) {
	page := bookingForm()
	page.els[selCreateAccount][0].checked = false
	sess := &fakeSession{page: page}

	_, err := newTestSequencer(sess).Book(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotContains(t, page.log.all(), "click create-account")
}

func TestBook_CancelledContext(t *testing.T) {
	sess := &fakeSession{page: bookingForm()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestSequencer(sess).Book(ctx, validRequest())
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "load-page", res.Steps[0].Name)
	assert.Equal(t, 1, sess.closed)
}

func TestBook_WritesTrace(t *testing.T) {
	dir := t.TempDir()

	_, err := newTestSequencer(&fakeSession{page: bookingForm()}, WithTraceDir(dir)).
		Book(context.Background(), validRequest())
	require.NoError(t, err)

	failing := bookingForm()
	delete(failing.els, selContinue)
	_, err = newTestSequencer(&fakeSession{page: failing}, WithTraceDir(dir)).
		Book(context.Background(), validRequest())
	require.Error(t, err)

	jsons, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, jsons, 2)

	pngs, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	require.Len(t, pngs, 1)
	shot, err := os.ReadFile(pngs[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), shot)
}

func TestBook_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)

	_, err := newTestSequencer(&fakeSession{page: bookingForm()}, WithMetrics(m)).
		Book(context.Background(), validRequest())
	require.NoError(t, err)
	_, err = NewSequencer(failingLauncher(), WithMetrics(m)).Book(context.Background(), validRequest())
	require.Error(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rec.Body.String()
	assert.Contains(t, out, `salonbook_booking_runs_total{outcome="success"} 1`)
	assert.Contains(t, out, `salonbook_booking_runs_total{outcome="failed"} 1`)
	assert.Contains(t, out, `salonbook_booking_step_duration_seconds_count{status="ok",step="submit"} 1`)
}

func TestRouteNameField(t *testing.T) {
	tests := []struct {
		in   string
		want nameField
	}{
		{"FirstNametxtFirstFirst Name", nameFirst},
		{"clientFirst", nameFirst},
		{"LastNametxtLast", nameLast},
		{"firstAndLast", nameLast},
		{"emailclientEmail", nameUnknown},
		{"", nameUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, routeNameField(tt.in))
		})
	}
}
