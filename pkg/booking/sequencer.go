package booking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ivikasavnish/salonbook/pkg/browser"
	"github.com/ivikasavnish/salonbook/pkg/metrics"
)

// TimePreferenceMode selects how the time-of-day dropdown is handled.
type TimePreferenceMode string

const (
	// TimePreferenceSkip leaves the form's default ("Any time") in place.
	TimePreferenceSkip TimePreferenceMode = "skip"
	// TimePreferenceKeyboard walks the Kendo dropdown with the arrow keys.
	TimePreferenceKeyboard TimePreferenceMode = "keyboard"
)

// Timings are the fixed waits between interactions. The booking form exposes
// no readiness signal, so every step sleeps.
type Timings struct {
	PageSettle       time.Duration `yaml:"page_settle"`
	FieldPause       time.Duration `yaml:"field_pause"`
	KeyPause         time.Duration `yaml:"key_pause"`
	OptionPause      time.Duration `yaml:"option_pause"`
	ControlPause     time.Duration `yaml:"control_pause"`
	ServiceKeyDelay  time.Duration `yaml:"service_key_delay"`
	EmployeeKeyDelay time.Duration `yaml:"employee_key_delay"`
	ResultsWait      time.Duration `yaml:"results_wait"`
	SlotRenderWait   time.Duration `yaml:"slot_render_wait"`
	FormWait         time.Duration `yaml:"form_wait"`
	ContinueWait     time.Duration `yaml:"continue_wait"`
	ConfirmationWait time.Duration `yaml:"confirmation_wait"`
	Observation      time.Duration `yaml:"observation"`
}

// DefaultTimings returns the waits the booking plugin has been observed to need.
func DefaultTimings() Timings {
	return Timings{
		PageSettle:       3 * time.Second,
		FieldPause:       500 * time.Millisecond,
		KeyPause:         300 * time.Millisecond,
		OptionPause:      100 * time.Millisecond,
		ControlPause:     time.Second,
		ServiceKeyDelay:  150 * time.Millisecond,
		EmployeeKeyDelay: 200 * time.Millisecond,
		ResultsWait:      3 * time.Second,
		SlotRenderWait:   2 * time.Second,
		FormWait:         3 * time.Second,
		ContinueWait:     2 * time.Second,
		ConfirmationWait: 3 * time.Second,
		Observation:      20 * time.Second,
	}
}

// DefaultActionTimeout caps one browser action so a control that never
// becomes interactable fails the run instead of hanging it.
const DefaultActionTimeout = 30 * time.Second

// Result describes a finished run, successful or not.
type Result struct {
	SelectedSlot string                 `json:"selectedSlot,omitempty"`
	Match        MatchKind              `json:"match,omitempty"`
	Steps        []browser.RecordedStep `json:"steps"`
	StartedAt    time.Time              `json:"startedAt"`
	FinishedAt   time.Time              `json:"finishedAt"`
}

// Sequencer drives one browser session through the booking form.
type Sequencer struct {
	launcher browser.Launcher
	timings  Timings
	mode     TimePreferenceMode
	viewport *browser.ViewPort
	binPath  string
	traceDir string
	timeout  time.Duration
	logger   *zerolog.Logger
	metrics  *metrics.BookingMetrics
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets a custom logger for the sequencer
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

func WithTimings(t Timings) Option {
	return func(s *Sequencer) {
		s.timings = t
	}
}

func WithTimePreferenceMode(mode TimePreferenceMode) Option {
	return func(s *Sequencer) {
		s.mode = mode
	}
}

func WithViewPort(vp browser.ViewPort) Option {
	return func(s *Sequencer) {
		s.viewport = &vp
	}
}

// WithBrowserBin points the launcher at a specific Chromium binary.
func WithBrowserBin(path string) Option {
	return func(s *Sequencer) {
		s.binPath = path
	}
}

// WithTraceDir writes a JSON step trace for every run, plus a screenshot for
// failed runs, into dir.
func WithTraceDir(dir string) Option {
	return func(s *Sequencer) {
		s.traceDir = dir
	}
}

// WithActionTimeout bounds every single click, query or keystroke run
// against the page. Zero disables the bound.
func WithActionTimeout(d time.Duration) Option {
	return func(s *Sequencer) {
		s.timeout = d
	}
}

// NewSequencer creates a sequencer that opens sessions through l
func NewSequencer(l browser.Launcher, opts ...Option) *Sequencer {
	nop := zerolog.Nop()
	s := &Sequencer{
		launcher: l,
		timings:  DefaultTimings(),
		mode:     TimePreferenceSkip,
		timeout:  DefaultActionTimeout,
		logger:   &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type outcome struct {
	status string
	detail string
}

func done(detail string) outcome { return outcome{status: browser.StepOK, detail: detail} }
func skip(detail string) outcome { return outcome{status: browser.StepSkipped, detail: detail} }

type step struct {
	name string
	run  func(ctx context.Context, r *bookingRun) (outcome, error)
}

type bookingRun struct {
	req    Request
	page   browser.Page
	log    zerolog.Logger
	result *Result
}

func (s *Sequencer) pipeline() []step {
	return []step{
		{"load-page", s.loadPage},
		{"set-date", s.setDate},
		{"time-preference", s.selectTimePreference},
		{"select-service", s.selectService},
		{"select-employee", s.selectEmployee},
		{"show-times", s.showTimes},
		{"select-slot", s.selectSlot},
		{"customer-info", s.fillCustomerInfo},
		{"submit", s.submit},
		{"confirmation", s.awaitConfirmation},
	}
}

// Book runs the full booking sequence for req. The browser session is closed
// before Book returns, whatever the outcome. The returned Result is non-nil
// whenever a session was opened.
func (s *Sequencer) Book(ctx context.Context, req Request) (res *Result, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	base := s.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		base = l
	}
	log := base.With().
		Str("date", req.Date).
		Str("service", req.Service).
		Str("employee", req.Employee).
		Logger()
	log.Info().
		Str("time_preference", req.TimePreference.String()).
		Str("specific_time", req.SpecificTime).
		Int("time_slot_index", req.TimeSlotIndex).
		Bool("headless", req.Headless).
		Dur("slow_mo", req.SlowMo).
		Msg("starting booking automation")

	session, err := s.launcher.Launch(ctx, browser.Config{
		Headless: req.Headless,
		SlowMo:   req.SlowMo,
		ViewPort: s.viewport,
		BinPath:  s.binPath,
		Timeout:  s.timeout,
	})
	if err != nil {
		s.metrics.ObserveRun(metrics.OutcomeFailed, time.Since(started).Seconds())
		return nil, &StepError{Step: "launch", Err: transport("launch browser", err)}
	}

	rec := browser.NewRecorder()
	r := &bookingRun{
		req:    req,
		page:   session.Page(),
		log:    log,
		result: &Result{StartedAt: started},
	}

	defer func() {
		s.saveTrace(r, rec, err)
		if cerr := session.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close browser session")
		}
		r.result.Steps = rec.Steps()
		r.result.FinishedAt = time.Now()

		status := metrics.OutcomeSuccess
		if err != nil {
			status = metrics.OutcomeFailed
		}
		s.metrics.ObserveRun(status, r.result.FinishedAt.Sub(started).Seconds())
	}()

	for _, st := range s.pipeline() {
		stepStart := time.Now()
		out, stepErr := st.run(ctx, r)
		elapsed := time.Since(stepStart)

		if stepErr != nil {
			rec.Record(st.name, browser.StepFailed, stepErr.Error(), elapsed)
			s.metrics.ObserveStep(st.name, browser.StepFailed, elapsed.Seconds())
			log.Error().Err(stepErr).Str("step", st.name).Msg("booking step failed")
			return r.result, &StepError{Step: st.name, Err: stepErr}
		}

		rec.Record(st.name, out.status, out.detail, elapsed)
		s.metrics.ObserveStep(st.name, out.status, elapsed.Seconds())
		event := log.Info()
		if out.status == browser.StepSkipped {
			event = log.Warn()
		}
		event.Str("step", st.name).Str("status", out.status).Str("detail", out.detail).Msg("booking step done")
	}

	log.Info().
		Str("slot", r.result.SelectedSlot).
		Dur("elapsed", time.Since(started)).
		Msg("booking completed")
	return r.result, nil
}

func (s *Sequencer) saveTrace(r *bookingRun, rec *browser.Recorder, runErr error) {
	if s.traceDir == "" {
		return
	}
	if err := os.MkdirAll(s.traceDir, 0o755); err != nil {
		r.log.Warn().Err(err).Str("dir", s.traceDir).Msg("failed to create trace directory")
		return
	}

	base := filepath.Join(s.traceDir, fmt.Sprintf("%s-%s", r.result.StartedAt.Format("20060102-150405"), uuid.NewString()))
	if err := rec.SaveToFile(base+".json", "booking "+r.req.Date+" "+r.req.Service, runErr); err != nil {
		r.log.Warn().Err(err).Msg("failed to write step trace")
	}
	if runErr == nil {
		return
	}
	shot, err := r.page.Screenshot()
	if err != nil {
		r.log.Warn().Err(err).Msg("failed to capture failure screenshot")
		return
	}
	if err := os.WriteFile(base+".png", shot, 0o644); err != nil {
		r.log.Warn().Err(err).Msg("failed to write failure screenshot")
	}
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
