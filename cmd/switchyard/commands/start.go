package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/switchyard-io/switchyard/internal/console"
	"github.com/switchyard-io/switchyard/internal/logger"
	"github.com/switchyard-io/switchyard/internal/telemetry"
	"github.com/switchyard-io/switchyard/pkg/config"
	"github.com/switchyard-io/switchyard/pkg/httpserver"
	"github.com/switchyard-io/switchyard/pkg/legacy"
	"github.com/switchyard-io/switchyard/pkg/legacy/hostadapter"
	"github.com/switchyard-io/switchyard/pkg/metrics"
)

var runConsole bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the switchyard server",
	Long: `Start the switchyard server with the specified configuration.

The server hosts the shared HTTP listener, watches the configuration file
for changes, and starts the legacy handoff in the configured topology.

Examples:
  # Start with default config location
  switchyard start

  # Start with custom config file
  switchyard start --config /etc/switchyard/config.yaml

  # Start with the interactive console (one process per cluster)
  switchyard start --console

  # Use environment variables to override config
  SWITCHYARD_LOGGING_LEVEL=DEBUG switchyard start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&runConsole, "console", false, "Run the interactive console (run on at most one process per cluster)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingCfg, profilingCfg := telemetry.FromAppConfig(cfg.Telemetry, Version)

	telemetryShutdown, err := telemetry.Init(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("Telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Live configuration pipeline: the same file that produced cfg feeds
	// the distributor with full-tree snapshots on every change.
	distributor := config.NewDistributor(metrics.NewConfigMetrics())
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}
	watcher := config.NewFileWatcher(configPath, distributor)

	proxy := legacy.NewHandoffProxy(metrics.NewProxyMetrics())
	cons := console.New(distributor)
	coordinator := legacy.NewCoordinator(legacy.CoordinatorParams{
		Distributor:       distributor,
		Topology:          cfg.Legacy.Mode,
		AdapterFactory:    &hostadapter.Factory{Register: registerLegacyHandlers},
		SupervisorFactory: &loggingSupervisorFactory{},
		Console:           cons,
		RunConsole:        cfg.Legacy.Console.Enabled && runConsole,
	}, proxy)
	cons.Attach(coordinator)

	router := httpserver.NewRouter(coordinator, metrics.Handler(), cfg.Server.RequestTimeout)
	server := httpserver.NewServer(cfg.Server, router)

	if err := watcher.LoadInitial(); err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	// The platform routes are all registered; the coordinator may now
	// install the catch-all and bring the adapter up.
	if err := coordinator.Start(ctx, router); err != nil {
		return fmt.Errorf("failed to start legacy handoff: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Switchyard is running. Press Ctrl+C to stop.",
		"addr", server.Addr(),
		"topology", cfg.Legacy.Mode,
	)

	var serveErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		serveErr = <-serverDone
	case serveErr = <-serverDone:
		signal.Stop(sigChan)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := coordinator.Stop(shutdownCtx); err != nil {
		logger.Error("Coordinator shutdown error", "error", err)
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info("Switchyard stopped gracefully")
	return nil
}

// registerLegacyHandlers attaches the legacy implementation's handlers to a
// fresh adapter. The default deployment has no embedded legacy handlers, so
// the single registered handler answers like the legacy router's fallback.
func registerLegacyHandlers(a *hostadapter.HostAdapter) {
	a.RegisterHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "not found",
			"path":  r.URL.Path,
		})
	})
}

// loggingSupervisorFactory is the supervisor-topology collaborator for the
// standalone binary: it records the delegation instead of spawning
// processes, which external supervisors replace with their own factory.
type loggingSupervisorFactory struct{}

func (f *loggingSupervisorFactory) CreateSupervisor(_ context.Context, snapshot legacy.SettingsView, basePathProxy http.Handler) (*legacy.SupervisorDescriptor, error) {
	desc := legacy.NewSupervisorDescriptor(snapshot, basePathProxy)
	logger.Info("Supervisor delegation created",
		"supervisor_id", desc.ID.String(),
		"base_path_proxy", basePathProxy != nil,
	)
	return desc, nil
}
