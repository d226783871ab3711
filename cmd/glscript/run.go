package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-script/internal/api"
	"github.com/nerrad567/gray-logic-script/internal/auth"
	"github.com/nerrad567/gray-logic-script/internal/bridge"
	"github.com/nerrad567/gray-logic-script/internal/event"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-script/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-script/internal/loader"
	"github.com/nerrad567/gray-logic-script/internal/runtime"
	"github.com/nerrad567/gray-logic-script/internal/state"
	"github.com/nerrad567/gray-logic-script/internal/timespec"
	"github.com/nerrad567/gray-logic-script/internal/trigger"
	"github.com/nerrad567/gray-logic-script/migrations"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the script engine until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", getConfigPath(), "Path to the YAML config file")
	return cmd
}

// run wires every component and blocks until ctx is cancelled.
// Deferred cleanups run in reverse order of start-up.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting glscript", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	// Script datetimes and time specs are local to the site.
	time.Local = cfg.Location()

	store := state.NewStore()
	store.SetLogger(log)
	notifier := state.NewNotifier()
	notifier.SetLogger(log)
	store.AddListener(notifier)
	bus := event.NewBus()
	bus.SetLogger(log)

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg, store, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB, log)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		store.AddListener(state.NewHistorySink(influxClient))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	rt := runtime.New(runtime.Config{Store: store, Bus: bus, Logger: log.Logger})
	defer rt.Close()

	env := &trigger.Env{
		Runtime:  rt,
		Notifier: notifier,
		Bus:      bus,
		Sun:      sunProvider(cfg),
		Logger:   log.Logger,
	}
	env.RegisterHostFunctions()

	scripts := loader.New(loader.Config{Folder: cfg.Scripts.Folder, Env: env, Logger: log.Logger})
	if err := scripts.RegisterReloadService(); err != nil {
		return fmt.Errorf("registering reload service: %w", err)
	}
	if err := scripts.Load(ctx); err != nil {
		return fmt.Errorf("loading scripts: %w", err)
	}
	scripts.Start()
	defer func() {
		log.Info("stopping scripts")
		scripts.Stop()
	}()

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, log)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()

		br, err := bridge.New(bridge.Options{
			Client: mqttClient,
			Topics: mqttClient.Topics(),
			Store:  store,
			Bus:    bus,
			QoS:    byte(cfg.MQTT.QoS), //nolint:gosec // G115: validated 0..2
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
		if err := br.Start(); err != nil {
			return fmt.Errorf("starting MQTT bridge: %w", err)
		}
		defer br.Stop()
		log.Info("MQTT bridge started",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"prefix", mqttClient.Topics().Prefix,
		)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Scripts.Watch {
		watcher := loader.NewWatcher(scripts, cfg.Debounce())
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				log.Error("script watcher stopped", "error", err)
			}
			return nil
		})
	}

	var srv *api.Server
	if cfg.API.Enabled {
		srv, err = startAPI(gctx, cfg, log, store, bus, rt, scripts)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient, srv); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal",
		"functions", len(scripts.Functions()),
		"triggers", len(scripts.Triggers()),
	)

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openDatabase opens SQLite, applies migrations and restores persisted
// state into store. Later changes are written through.
func openDatabase(ctx context.Context, cfg *config.Config, store *state.Store, log *logging.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	repo := state.NewSQLiteRepository(db.DB)
	if err := store.Load(ctx, repo); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("restoring state: %w", err)
	}
	store.AddListener(state.NewPersister(repo, log))
	log.Info("database connected", "path", cfg.Database.Path, "entities", len(store.Names()))
	return db, nil
}

func startAPI(ctx context.Context, cfg *config.Config, log *logging.Logger, store *state.Store, bus *event.Bus, rt *runtime.Runtime, scripts *loader.Loader) (*api.Server, error) {
	issuer, err := auth.NewIssuer(cfg.Security.JWT.Secret, cfg.AccessTokenTTL())
	if err != nil {
		return nil, fmt.Errorf("creating token issuer: %w", err)
	}
	authn, err := auth.NewAuthenticator(cfg.Security.Admin.Username, cfg.Security.Admin.PasswordHash, issuer)
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}

	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Auth:    authn,
		Store:   store,
		Bus:     bus,
		Runtime: rt,
		Scripts: scripts,
		Version: version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	return srv, nil
}

// sunProvider returns the site location, or nil when none is configured.
func sunProvider(cfg *config.Config) timespec.SunProvider {
	loc := cfg.Site.Location
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return nil
	}
	return timespec.Location{Latitude: loc.Latitude, Longitude: loc.Longitude}
}

// healthCheck verifies every enabled component. Nil components are
// disabled and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, srv *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if srv != nil {
		if err := srv.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}
