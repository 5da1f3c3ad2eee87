// usbflow is the USB Power Flow Core daemon.
//
// It scans the Windows registry for USB devices, tracks their selective
// suspend power flags, and serves an HTTP/WebSocket API for inspecting
// and toggling them. Writes that need administrator rights are handed
// to a privileged helper via the elevation coordinator. Optional MQTT
// and InfluxDB integrations mirror fleet state and scan telemetry.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/usbflow-core/internal/api"
	"github.com/nerrad567/usbflow-core/internal/elevation"
	"github.com/nerrad567/usbflow-core/internal/infrastructure/config"
	"github.com/nerrad567/usbflow-core/internal/infrastructure/database"
	"github.com/nerrad567/usbflow-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/usbflow-core/internal/infrastructure/logging"
	"github.com/nerrad567/usbflow-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/usbflow-core/internal/usb"
	"github.com/nerrad567/usbflow-core/internal/winreg"

	_ "github.com/nerrad567/usbflow-core/migrations"
)

// Build-time variables, set via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "usbflow: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("usbflow starting",
		"version", version,
		"commit", commit,
		"built", date,
	)

	// ─── Persistence ───

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	history := usb.NewSQLiteHistoryRepository(db.DB)

	// ─── Registry and device inventory ───

	reg, err := openRegistry(cfg.Registry)
	if err != nil {
		return fmt.Errorf("opening registry backend %q: %w", cfg.Registry.Backend, err)
	}

	scanner := usb.NewScanner(reg, cfg.Registry.Root)
	scanner.SetLogger(log)

	store := usb.NewStore()
	store.SetLogger(log)

	executor := usb.NewExecutor(reg, history)
	executor.SetLogger(log)

	refresher := newRefreshScheduler()

	// ─── Elevation coordinator ───

	var coordinator *elevation.Coordinator
	launcher, err := elevation.NewLauncher()
	if err != nil {
		log.Warn("elevation unavailable, privileged writes disabled", "error", err)
	} else {
		coordinator = elevation.NewCoordinator(elevation.Config{
			PollInterval: cfg.Elevation.PollInterval,
			Timeout:      cfg.Elevation.Timeout,
		}, launcher, refresher, history)
		coordinator.SetLogger(log)
		defer coordinator.Close()
	}

	// ─── Optional integrations ───

	nodeID := nodeIdentity(cfg)
	topics := mqtt.Topics{}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, fleet publishing disabled", "error", err)
		} else {
			mqttClient.SetLogger(log)
			mqttClient.SetOnConnect(func() {
				log.Info("MQTT connected", "node_id", nodeID)
			})
			mqttClient.SetOnDisconnect(func(err error) {
				log.Warn("MQTT connection lost", "error", err)
			})
			defer mqttClient.Close()
		}
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, scan telemetry disabled", "error", err)
		} else {
			influxClient.SetOnError(func(err error) {
				log.Warn("InfluxDB write error", "error", err)
			})
			defer influxClient.Close()
		}
	}

	// ─── API server ───

	var onEvent func(elevation.StatusEvent)
	if mqttClient != nil || influxClient != nil {
		elevationTopic := topics.FleetElevation(nodeID)
		onEvent = func(ev elevation.StatusEvent) {
			if mqttClient != nil {
				mqttClient.PublishEvent(elevationTopic, ev)
			}
			if influxClient == nil {
				return
			}
			switch ev.State {
			case elevation.StateCompleted, elevation.StateFailed, elevation.StateTimedOut:
				influxClient.WriteMutation(nodeID, "elevated", string(ev.State))
			}
		}
	}

	var onMutation func(action, outcome string)
	if mqttClient != nil || influxClient != nil {
		mutationTopic := topics.FleetMutation(nodeID)
		onMutation = func(action, outcome string) {
			if mqttClient != nil {
				mqttClient.PublishEvent(mutationTopic, map[string]any{
					"node_id": nodeID,
					"action":  action,
					"outcome": outcome,
					"at":      time.Now().UTC(),
				})
			}
			if influxClient != nil {
				influxClient.WriteMutation(nodeID, action, outcome)
			}
		}
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log,
		Store:         store,
		Executor:      executor,
		Coordinator:   coordinator,
		History:       history,
		Refresher:     refresher,
		Version:       version,
		EnumRoot:      cfg.Registry.Root,
		OnStatusEvent: onEvent,
		OnMutation:    onMutation,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer server.Close()

	// ─── Scan loop ───

	go runScanLoop(ctx, scanLoopDeps{
		cfg:       cfg,
		log:       log,
		scanner:   scanner,
		store:     store,
		server:    server,
		refresher: refresher,
		history:   history,
		mqtt:      mqttClient,
		influx:    influxClient,
		topics:    topics,
		nodeID:    nodeID,
	})
	refresher.RequestRefresh()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		log.Warn("startup health check reported problems", "error", err)
	}

	log.Info("usbflow ready",
		"api", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"registry_backend", cfg.Registry.Backend,
		"elevation", coordinator != nil,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// loadConfig reads the YAML config named by USBFLOW_CONFIG or the
// default path. A missing default file is not an error; built-in
// defaults (plus USBFLOW_* env overrides) apply instead.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("USBFLOW_CONFIG")
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.Load(defaultConfigPath)
	}
	return config.Default(), nil
}

// openRegistry selects the registry backend. The memory backend exists
// for development on non-Windows hosts and can be seeded from a YAML
// fixture.
func openRegistry(cfg config.RegistryConfig) (winreg.Registry, error) {
	switch cfg.Backend {
	case "memory":
		if cfg.Fixture != "" {
			return winreg.LoadFixture(cfg.Fixture)
		}
		return winreg.NewMem(), nil
	case "", "windows":
		return winreg.New()
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// nodeIdentity returns the identifier used in fleet topics and
// telemetry tags. The MQTT client ID doubles as the node name; the
// hostname is the fallback.
func nodeIdentity(cfg *config.Config) string {
	if cfg.MQTT.Broker.ClientID != "" {
		return cfg.MQTT.Broker.ClientID
	}
	host, err := os.Hostname()
	if err != nil {
		return "usbflow"
	}
	return host
}

// refreshScheduler coalesces rescan requests into a single pending
// signal so a burst of mutations triggers one scan, not many.
type refreshScheduler struct {
	ch chan struct{}
}

func newRefreshScheduler() *refreshScheduler {
	return &refreshScheduler{ch: make(chan struct{}, 1)}
}

func (r *refreshScheduler) RequestRefresh() {
	select {
	case r.ch <- struct{}{}:
	default:
	}
}

// historyPruneInterval is how often old mutation history rows are
// removed. Retention itself comes from config.
const historyPruneInterval = time.Hour

type scanLoopDeps struct {
	cfg       *config.Config
	log       *logging.Logger
	scanner   *usb.Scanner
	store     *usb.Store
	server    *api.Server
	refresher *refreshScheduler
	history   usb.HistoryRepository
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	topics    mqtt.Topics
	nodeID    string
}

// runScanLoop rescans the registry on demand and, when configured, on a
// periodic tick. Each scan replaces the store snapshot and fans the
// result out to WebSocket clients and the optional integrations. The
// loop also owns mutation-history retention.
func runScanLoop(ctx context.Context, deps scanLoopDeps) {
	var tick <-chan time.Time
	if deps.cfg.Scan.Interval > 0 {
		ticker := time.NewTicker(deps.cfg.Scan.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var prune <-chan time.Time
	if deps.history != nil && deps.cfg.Database.HistoryRetention > 0 {
		pruner := time.NewTicker(historyPruneInterval)
		defer pruner.Stop()
		prune = pruner.C
		pruneHistory(ctx, deps)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-prune:
			pruneHistory(ctx, deps)
			continue
		case <-deps.refresher.ch:
		case <-tick:
		}

		devices, stats, err := deps.scanner.Scan(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				deps.log.Error("registry scan failed", "error", err)
			}
			continue
		}

		deps.store.Replace(devices, stats)
		deps.server.NotifyDevicesUpdated()

		snapshot := deps.store.GetStats()
		if deps.mqtt != nil {
			deps.mqtt.PublishRetained(deps.topics.FleetSnapshot(deps.nodeID), snapshot)
		}
		if deps.influx != nil {
			deps.influx.WriteScanStats(deps.nodeID, stats, snapshot)
		}
	}
}

// pruneHistory removes mutation records older than the configured
// retention window.
func pruneHistory(ctx context.Context, deps scanLoopDeps) {
	removed, err := deps.history.Prune(ctx, deps.cfg.Database.HistoryRetention)
	if err != nil {
		deps.log.Warn("pruning mutation history failed", "error", err)
		return
	}
	if removed > 0 {
		deps.log.Debug("mutation history pruned", "removed", removed)
	}
}

// healthCheck pings the dependencies that expose one. Failures are
// reported, not fatal; the service degrades rather than refuses to
// start.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if err := db.HealthCheck(checkCtx); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(checkCtx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			errs = append(errs, fmt.Errorf("influxdb: %w", err))
		}
	}
	return errors.Join(errs...)
}
