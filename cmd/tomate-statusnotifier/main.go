// Command tomate-statusnotifier runs the tray services standalone: it
// connects to the session bus, exports the item and menu objects, and drives
// the controller with a repeating session timer. It is the headless stand-in
// for the host application, useful for exercising the services against a
// real desktop shell.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	statusnotifier "github.com/eliostvs/tomate-statusnotifieritem-plugin"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	logLevel      string
	metricsAddr   string
	ownWatcher    bool
	sessionLength time.Duration
	pauseLength   time.Duration
}

func main() {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "tomate-statusnotifier",
		Short:        "Expose a session timer in the system tray",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on, empty to disable")
	cmd.Flags().BoolVar(&opts.ownWatcher, "own-watcher", false, "serve org.kde.StatusNotifierWatcher when the desktop shell provides none")
	cmd.Flags().DurationVar(&opts.sessionLength, "session-length", 25*time.Minute, "length of each timed session")
	cmd.Flags().DurationVar(&opts.pauseLength, "pause-length", 5*time.Minute, "pause between sessions")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options) error {
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	if opts.ownWatcher {
		watcher := statusnotifier.NewWatcher(conn, logger.Named("watcher"))
		if err := watcher.Listen(); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Close()
	}

	menu, err := statusnotifier.NewMenu(conn, logger.Named("menu"))
	if err != nil {
		return err
	}

	item, err := statusnotifier.NewItem(conn, statusnotifier.ItemConfig{
		ID:    "tomate",
		Title: "Tomate",
	}, logger.Named("item"))
	if err != nil {
		return err
	}

	events := statusnotifier.NewCounter(
		"tomate_tray_events_total",
		"Session and menu events handled by the tray controller.",
		"event",
	)

	window := &consoleWindow{logger: logger.Named("window")}
	ctrl := statusnotifier.NewController(item, menu, window, logger.Named("controller"), events)
	window.ctrl = ctrl

	logger.Info("tray item registered", zap.String("bus_name", item.BusName()))

	g, ctx := errgroup.WithContext(ctx)

	if opts.metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, opts.metricsAddr, logger)
		})
	}

	g.Go(func() error {
		return runSessions(ctx, ctrl, opts.sessionLength, opts.pauseLength, logger)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	ctrl.Deactivate()

	return nil
}

// runSessions drives the controller with back-to-back timed sessions until
// the context is canceled.
func runSessions(ctx context.Context, ctrl *statusnotifier.Controller, length, pause time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		logger.Info("session started", zap.Duration("length", length))
		ctrl.OnSessionStart()

		start := time.Now()

		for elapsed := time.Duration(0); elapsed < length; {
			select {
			case <-ctx.Done():
				ctrl.OnSessionInterrupt()
				return ctx.Err()
			case <-ticker.C:
				elapsed = time.Since(start)
				ctrl.OnTimerUpdate(100 * elapsed.Seconds() / length.Seconds())
			}
		}

		logger.Info("session ended", zap.Duration("pause", pause))
		ctrl.OnSessionEnd()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"

	return cfg.Build()
}

// consoleWindow satisfies statusnotifier.WindowControl for the headless
// daemon. There is no real window, so show and hide requests only flip the
// menu arrangement through the controller.
type consoleWindow struct {
	logger *zap.Logger
	ctrl   *statusnotifier.Controller
}

func (w *consoleWindow) Show() {
	w.logger.Info("window show requested")
	w.ctrl.OnWindowShown()
}

func (w *consoleWindow) Hide() {
	w.logger.Info("window hide requested")
	w.ctrl.OnWindowHidden()
}
