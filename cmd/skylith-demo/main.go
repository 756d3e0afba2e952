// Command skylith-demo runs a minimal standalone OpenID 2.0 Provider: it
// auto-approves every authentication request as a single fixed identity,
// to exercise the skylith engine end to end without a real login UI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"
	gosundheithttp "github.com/AppsFlyer/go-sundheit/http"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/codeaholics/skylith/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "skylith-demo",
		Short: "Run a standalone demo OpenID 2.0 Provider",
	}
	root.AddCommand(commandServe())
	return root
}

type serveOptions struct {
	config string
}

func commandServe() *cobra.Command {
	options := serveOptions{}

	cmd := &cobra.Command{
		Use:     "serve [flags] config.yaml",
		Short:   "Run the demo provider",
		Example: "skylith-demo serve config.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			options.config = args[0]
			return runServe(options)
		},
	}
	return cmd
}

func runServe(options serveOptions) error {
	cfg, err := loadConfig(options.config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("invalid logLevel %q: %w", cfg.LogLevel, err)
		}
	}
	logger, err := newLogger(level, cfg.LogFormat)
	if err != nil {
		return err
	}

	assocExpiry, err := parseDuration(cfg.AssociationExpiry)
	if err != nil {
		return fmt.Errorf("invalid associationExpiry: %w", err)
	}
	nonceExpiry, err := parseDuration(cfg.NonceExpiry)
	if err != nil {
		return fmt.Errorf("invalid nonceExpiry: %w", err)
	}

	prometheusRegistry := prometheus.NewRegistry()

	// engine is assigned once NewServer returns; the CheckAuth closure
	// below captures the variable, not its (as yet unset) value, and only
	// runs once requests arrive, after NewServer has returned.
	var engine *server.Server

	checkAuth := func(w http.ResponseWriter, r *http.Request, interactive bool, ctx *server.Context) {
		autoApprove(engine, w, r, ctx, cfg.Identity)
	}

	engine, err = server.NewServer(server.Config{
		ProviderEndpoint:   cfg.ProviderEndpoint,
		CheckAuth:          checkAuth,
		AssociationExpiry:  assocExpiry,
		NonceExpiry:        nonceExpiry,
		AllowedOrigins:     cfg.AllowedOrigins,
		Logger:             logger,
		PrometheusRegistry: prometheusRegistry,
		Now:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: engine}

	var gr run.Group

	{
		listener, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
		}
		gr.Add(func() error {
			logger.Info("listening", "addr", cfg.ListenAddr)
			return httpSrv.Serve(listener)
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		})
	}

	if cfg.TelemetryAddr != "" {
		healthChecker := gosundheit.New()
		healthChecker.RegisterCheck(&gosundheit.Config{
			Check:            &checks.CustomCheck{CheckName: "engine", CheckFunc: func(context.Context) (interface{}, error) { return nil, nil }},
			ExecutionPeriod:  15 * time.Second,
			InitiallyPassing: true,
		})

		telemetryMux := http.NewServeMux()
		telemetryMux.Handle("/metrics", promhttp.HandlerFor(prometheusRegistry, promhttp.HandlerOpts{}))
		telemetryMux.Handle("/healthz", gosundheithttp.HandleHealthJSON(healthChecker))

		telemetrySrv := &http.Server{Addr: cfg.TelemetryAddr, Handler: telemetryMux}
		listener, err := net.Listen("tcp", cfg.TelemetryAddr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.TelemetryAddr, err)
		}
		gr.Add(func() error {
			logger.Info("listening", "addr", cfg.TelemetryAddr, "server", "telemetry")
			return telemetrySrv.Serve(listener)
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = telemetrySrv.Shutdown(shutdownCtx)
		})
	}

	{
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		done := make(chan struct{})
		gr.Add(func() error {
			select {
			case <-sigCh:
			case <-done:
			}
			return nil
		}, func(error) {
			close(done)
		})
	}

	return gr.Run()
}
