// Gray Logic 1-Wire Bridge
//
// This is the main entry point for the 1-Wire sensor bridge. The bridge
// discovers temperature, humidity, pressure and counter devices on a
// 1-Wire bus (via owserver or the kernel w1 driver), polls them on a
// fixed cycle, and publishes normalized readings to MQTT for Gray Logic
// Core to consume.
//
// For the topic scheme, see: docs/architecture/bridge-interface.md
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-onewire/migrations"

	"github.com/nerrad567/gray-logic-onewire/internal/api"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
	"github.com/nerrad567/gray-logic-onewire/internal/readings"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting 1-Wire bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database (optional; history endpoints are empty without it)
	var db *database.DB
	var store readings.Repository
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		repo := readings.NewSQLiteRepository(db.DB)
		store = repo

		if cfg.Database.RetentionDays > 0 {
			retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
			go pruneLoop(ctx, log, repo, retention)
			log.Info("reading retention enabled", "days", cfg.Database.RetentionDays)
		}
	} else {
		log.Info("database disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry onewire.TelemetryWriter
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build bus backends
	backends, owConn, owAddress, err := buildBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	if owConn != nil {
		defer func() {
			log.Info("closing owserver connection")
			if closeErr := owConn.Close(); closeErr != nil {
				log.Error("error closing owserver", "error", closeErr)
			}
		}()
	}

	// Create and start the bridge
	bridge, err := onewire.NewBridge(onewire.BridgeOptions{
		BridgeID:        cfg.Bridge.ID,
		Version:         version,
		PollInterval:    cfg.GetPollInterval(),
		HealthInterval:  cfg.GetHealthInterval(),
		Names:           cfg.Bridge.Names,
		MQTT:            mqttClient,
		Backends:        backends,
		Owserver:        owserverOrNil(owConn),
		OwserverAddress: owAddress,
		Store:           store,
		Telemetry:       telemetry,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	// Start the API server (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Bridge:  bridge,
			History: store,
			MQTT:    mqttClient,
			DB:      dbStatsOrNil(db),
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// buildBackends creates the configured bus access backends.
//
// owserver is dialled eagerly so a misconfigured address fails startup
// rather than the first poll cycle. The returned client is nil when the
// owserver backend is disabled.
func buildBackends(ctx context.Context, cfg *config.Config, log *logging.Logger) ([]onewire.Backend, *onewire.OwserverClient, string, error) {
	var backends []onewire.Backend
	var owConn *onewire.OwserverClient
	var owAddress string

	if cfg.OWServer.Enabled {
		client, err := onewire.DialOwserver(ctx, onewire.OwserverConfig{
			Host:    cfg.OWServer.Host,
			Port:    cfg.OWServer.Port,
			Timeout: cfg.GetOWServerTimeout(),
		})
		if err != nil {
			return nil, nil, "", fmt.Errorf("connecting to owserver: %w", err)
		}
		client.SetLogger(log)
		owConn = client
		owAddress = client.Address()
		log.Info("owserver connected", "address", owAddress)

		backends = append(backends, onewire.NewProxyBackend(client, log))
	}

	if cfg.SysBus.Enabled {
		bus := onewire.NewSysBus(cfg.SysBus.MountDir)
		backends = append(backends, onewire.NewSysBusBackend(bus, log))
		log.Info("sysbus backend enabled", "mount_dir", bus.MountDir())
	}

	return backends, owConn, owAddress, nil
}

// owserverOrNil avoids storing a typed nil in the Owserver interface.
func owserverOrNil(client *onewire.OwserverClient) onewire.Owserver {
	if client == nil {
		return nil
	}
	return client
}

// dbStatsOrNil avoids storing a typed nil in the DBStats interface.
func dbStatsOrNil(db *database.DB) api.DBStats {
	if db == nil {
		return nil
	}
	return db
}

// pruneInterval is how often old readings are swept out.
const pruneInterval = 24 * time.Hour

// pruneLoop deletes readings older than the retention window until ctx
// is cancelled. Runs once at startup, then daily.
func pruneLoop(ctx context.Context, log *logging.Logger, repo *readings.SQLiteRepository, retention time.Duration) {
	prune := func() {
		deleted, err := repo.Prune(ctx, retention)
		if err != nil {
			log.Error("pruning readings failed", "error", err)
			return
		}
		if deleted > 0 {
			log.Info("pruned old readings", "deleted", deleted)
		}
	}

	prune()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses ONEWIRE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ONEWIRE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if disabled)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
