package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivikasavnish/salonbook/pkg/booking"
	"github.com/ivikasavnish/salonbook/pkg/browser"
	"github.com/ivikasavnish/salonbook/pkg/config"
	"github.com/ivikasavnish/salonbook/pkg/logging"
	"github.com/ivikasavnish/salonbook/pkg/metrics"
	"github.com/ivikasavnish/salonbook/pkg/webhook"
)

const usage = `usage:
  salonbook [serve] [-config path]
  salonbook book -request file.yaml|file.json [-config path]`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(args)
	case "book":
		return book(args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func loadConfigAndLogger(configPath string) (config.Config, zerolog.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, "salonbook")
	if err != nil {
		return config.Config{}, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, *baseLogger, closer, nil
}

func newSequencer(cfg config.Config, logger *zerolog.Logger, m *metrics.BookingMetrics) *booking.Sequencer {
	browserLogger := logger.With().Str("component", "browser").Logger()
	launcher := browser.NewRodLauncher(browser.WithLogger(&browserLogger))

	seqLogger := logger.With().Str("component", "sequencer").Logger()
	return booking.NewSequencer(launcher,
		booking.WithLogger(&seqLogger),
		booking.WithMetrics(m),
		booking.WithTimings(cfg.Booking.Timings),
		booking.WithTimePreferenceMode(cfg.Booking.TimePreferenceMode),
		booking.WithViewPort(cfg.Browser.ViewPort),
		booking.WithBrowserBin(cfg.Browser.BinPath),
		booking.WithActionTimeout(cfg.Browser.ActionTimeout),
		booking.WithTraceDir(cfg.Trace.Dir),
	)
}

func serve(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, closer, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewBookingMetrics(nil)
	if cfg.Server.MetricsPort > 0 {
		go startMetricsServer(ctx, cfg.Server.MetricsPort, m.Handler(), &logger)
	}

	webhookLogger := logger.With().Str("component", "webhook").Logger()
	handler := webhook.NewServer(newSequencer(cfg, &logger, m), cfg.BaseRequest(),
		webhook.WithLogger(&webhookLogger),
		webhook.WithMetrics(m),
		webhook.WithSchema(cfg.Server.Schema),
		webhook.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		// In-flight bookings outlive their clients and stop at shutdown.
		webhook.WithRunContext(ctx),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info().
		Int("port", cfg.Server.Port).
		Str("schema", cfg.Server.Schema).
		Bool("headless", cfg.Browser.Headless).
		Dur("slow_mo", cfg.Browser.SlowMo).
		Msg("webhook server listening, POST booking requests to /webhook/booking")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("webhook server: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("webhook server shutdown")
	}
	logger.Info().Msg("webhook server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, h http.Handler, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// book runs a single booking from a request file and prints the result.
func book(args []string) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	requestPath := fs.String("request", "", "booking request file (.yaml, .yml or .json)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *requestPath == "" {
		return fmt.Errorf("-request is required\n%s", usage)
	}

	cfg, logger, closer, err := loadConfigAndLogger(*configPath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	overrides, err := booking.LoadOverrides(*requestPath)
	if err != nil {
		return err
	}
	req := cfg.BaseRequest().Apply(overrides)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := newSequencer(cfg, &logger, nil).Book(ctx, req)
	if res != nil {
		out, merr := json.MarshalIndent(res, "", "  ")
		if merr == nil {
			fmt.Println(string(out))
		}
	}
	if err != nil {
		return fmt.Errorf("booking failed: %w", err)
	}
	logger.Info().Str("slot", res.SelectedSlot).Msg("booking completed successfully")
	return nil
}
