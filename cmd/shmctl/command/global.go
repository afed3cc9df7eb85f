package command

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/irsl/shmcontroller/internal/config"
	"github.com/irsl/shmcontroller/kernel/shm"
	"github.com/irsl/shmcontroller/kernel/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ExitSuccess = iota
	ExitError
	ExitBadArgs
	ExitInvalid
)

const shutdownTimeout = 5 * time.Second

// GlobalFlags are the persistent flags of every command.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	Backend    string
}

var GlobalFlagsInstance = GlobalFlags{}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(GlobalFlagsInstance.ConfigPath)
	if err != nil {
		return config.Config{}, withExitCode(ExitBadArgs, err)
	}
	if GlobalFlagsInstance.LogLevel != "" {
		cfg.Log.Level = GlobalFlagsInstance.LogLevel
	}
	if GlobalFlagsInstance.Backend != "" {
		cfg.Shm.Backend = GlobalFlagsInstance.Backend
	}
	return cfg, nil
}

func newLogger(cfg config.Config, component string) *utils.Logger {
	logger := utils.DefaultLogger(component)
	if level, err := utils.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

// openSegment opens and activates the configured segment.
func openSegment(cfg config.Config, create bool, role shm.Role, logger *utils.Logger) (*shm.Segment, error) {
	settings, err := cfg.SegmentSettings()
	if err != nil {
		return nil, withExitCode(ExitBadArgs, err)
	}
	opts, err := cfg.SegmentOptions()
	if err != nil {
		return nil, withExitCode(ExitBadArgs, err)
	}
	opts = append(opts, shm.WithRole(role), shm.WithLogger(logger.Named("shm")))

	seg, err := shm.Open(settings, create, opts...)
	if err != nil {
		return nil, utils.WrapError(err, "open segment")
	}
	if err := seg.MustActivate(); err != nil {
		_ = seg.Close()
		return nil, err
	}
	logger.Info("Segment active",
		utils.String("settings", settings.String()),
		utils.Bool("created", seg.Created()),
	)
	return seg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startMetrics serves /metrics when addr is set and registers its shutdown.
func startMetrics(addr string, shutdown *utils.GracefulShutdown, logger *utils.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", utils.Err(err))
		}
	}()
	logger.Info("Serving metrics", utils.String("addr", addr))

	shutdown.Register("metrics", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(ctx)
	})
}
