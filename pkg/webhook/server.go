package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ivikasavnish/salonbook/pkg/booking"
	"github.com/ivikasavnish/salonbook/pkg/config"
	"github.com/ivikasavnish/salonbook/pkg/metrics"
)

const failureMessage = "Booking automation failed"

// Booker runs one booking to completion.
type Booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// Server is the HTTP front end that turns booking payloads into runs.
type Server struct {
	booker  Booker
	base    booking.Request
	schema  string
	maxBody int64
	router  *mux.Router
	handler http.Handler
	runCtx  context.Context
	logger  *zerolog.Logger
	metrics *metrics.BookingMetrics
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets a custom logger for the server
func WithLogger(logger *zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics counts responses by status code.
func WithMetrics(m *metrics.BookingMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithSchema selects the accepted payload shape, config.SchemaFlat or
// config.SchemaNested.
func WithSchema(schema string) Option {
	return func(s *Server) {
		s.schema = schema
	}
}

// WithMaxBodyBytes caps the request body. Larger bodies abort the connection.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// WithRunContext ties booking runs to ctx instead of the request. Runs keep
// going when the client disconnects and stop when ctx is cancelled.
func WithRunContext(ctx context.Context) Option {
	return func(s *Server) {
		s.runCtx = ctx
	}
}

// NewServer creates a webhook server. base supplies every request field the
// payload does not carry.
func NewServer(booker Booker, base booking.Request, opts ...Option) *Server {
	nop := zerolog.Nop()
	s := &Server{
		booker:  booker,
		base:    base,
		schema:  config.SchemaFlat,
		maxBody: config.Default().Server.MaxBodyBytes,
		router:  mux.NewRouter(),
		runCtx:  context.Background(),
		logger:  &nop,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.handler = requestLogger(s.logger, s.metrics)(s.router)
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook/booking", s.handleBooking).Methods(http.MethodPost)
	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(handleNotFound)
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// StatusResponse reports the outcome of a health check or booking run.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse reports a request the server refused to run.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details any) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found", nil)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (s *Server) newPayload() payload {
	if s.schema == config.SchemaNested {
		return &NestedPayload{}
	}
	return &FlatPayload{}
}

func (s *Server) handleBooking(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn().Int64("limit", tooLarge.Limit).Msg("request body too large, dropping connection")
			panic(http.ErrAbortHandler)
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	p := s.newPayload()
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, p); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
			return
		}
	}

	if missing := p.missing(); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "Invalid payload", missing)
		return
	}

	req := s.base.Apply(p.overrides())
	log.Info().
		Str("schema", s.schema).
		Str("date", req.Date).
		Str("specific_time", req.SpecificTime).
		Str("service", req.Service).
		Str("employee", req.Employee).
		Msg("incoming booking request")

	ctx, cancel := s.runContext(r)
	defer cancel()

	if _, err := s.booker.Book(ctx, req); err != nil {
		log.Error().Err(err).Msg("booking automation failed")
		if s.schema == config.SchemaNested {
			writeJSON(w, http.StatusInternalServerError, StatusResponse{
				Status:  "error",
				Message: failureMessage,
				Details: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, StatusResponse{
			Status:  "failed",
			Message: failureMessage,
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "success"})
}

// runContext detaches a booking from the request's cancellation but keeps its
// values, so the request logger still reaches the run.
func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	stop := context.AfterFunc(s.runCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
