package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mqttwaker/internal/action"
	"github.com/nerrad567/mqttwaker/internal/command"
	"github.com/nerrad567/mqttwaker/internal/display"
	"github.com/nerrad567/mqttwaker/internal/history"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/database"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/logging"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttwaker/internal/process"
	"github.com/nerrad567/mqttwaker/internal/status"
)

// recordTimeout bounds a single history write from a broker callback.
const recordTimeout = 2 * time.Second

// daemon owns the long-lived stores and the current activation. Stores are
// opened once per process; an activation is rebuilt on every reload.
type daemon struct {
	log     *logging.Logger
	db      *database.DB
	history *history.SQLiteRepository
	influx  *influxdb.Client

	current *activation
}

// activation is one configured broker session with its collaborators.
type activation struct {
	cfg     *config.Config
	manager *mqtt.Manager
	overlay *display.Overlay
}

func newDaemon(cfg *config.Config, log *logging.Logger) (*daemon, error) {
	d := &daemon{log: log}

	if cfg.Database.Enabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(context.Background()); err != nil {
			db.Close() //nolint:errcheck // migration error takes precedence
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		d.db = db
		d.history = history.NewSQLiteRepository(db.DB)
		log.Info("command history enabled", "path", db.Path())
	} else {
		log.Info("command history disabled")
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB, cfg.MQTT.ClientID)
		if err != nil {
			// Metrics are optional; the daemon runs without them.
			log.Warn("InfluxDB unavailable, metrics disabled", "error", err)
		} else {
			client.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			d.influx = client
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	return d, nil
}

// activate builds and starts a new activation from cfg. A configuration the
// manager refuses is reported and leaves the activation idle; the daemon keeps
// running so a later reload can fix it.
func (d *daemon) activate(cfg *config.Config) *activation {
	runner := process.NewRunner(cfg.Display.GetCommandTimeout())
	runner.SetLogger(d.log.Component("process"))

	manager := mqtt.NewManager(nil)
	manager.SetLogger(d.log.Component("mqtt"))

	reporter := d.reporters(cfg, runner, manager)
	manager.SetReporter(reporter)

	overlay := display.NewOverlay(cfg.Display, runner)
	overlay.SetLogger(d.log.Component("display"))
	locker := display.NewLocker(cfg.Display, runner)
	locker.SetLogger(d.log.Component("display"))

	wake := action.NewWakeDisplay(overlay, cfg.Display.BrowserURL, reporter)
	wake.SetLogger(d.log.Component("action"))
	lock := action.NewLockDisplay(locker, reporter)
	lock.SetLogger(d.log.Component("action"))

	dispatcher := command.NewDispatcher(wake, lock)
	dispatcher.SetLogger(d.log.Component("command"))
	if d.history != nil {
		dispatcher.AddRecorder(d.history)
	}
	if d.influx != nil {
		dispatcher.AddRecorder(d.influx)
	}
	manager.SetHandler(dispatcher.OnMessage)

	manager.SetOnStateChange(func(st mqtt.State) {
		d.recordState(st, manager.FailureReason())
	})
	manager.SetOnConnected(func(sessionID string) {
		d.log.Info("MQTT session established", "session", sessionID)
	})
	manager.SetOnConnectFailed(func(err error) {
		d.log.Warn("MQTT connection failed", "error", err)
	})

	if err := manager.Start(cfg.MQTT); err != nil {
		if !errors.Is(err, mqtt.ErrInvalidConfig) {
			d.log.Error("starting MQTT manager", "error", err)
		}
	}

	act := &activation{cfg: cfg, manager: manager, overlay: overlay}
	d.current = act
	return act
}

func (d *daemon) reporters(cfg *config.Config, runner *process.Runner, publisher status.Publisher) status.Reporter {
	reporters := status.Multi{status.NewLogReporter(d.log.Component("status"))}
	if cfg.Notify.Enabled && len(cfg.Notify.Command) > 0 {
		reporters = append(reporters, status.NewNotifier(runner, cfg.Notify.Command, d.log.Component("notify")))
	}
	if cfg.MQTT.StatusTopic != "" {
		reporters = append(reporters, status.NewTopicReporter(publisher, cfg.MQTT.StatusTopic, d.log.Component("status")))
	}
	return reporters
}

func (d *daemon) recordState(st mqtt.State, reason string) {
	if st != mqtt.Failed {
		reason = ""
	}
	if d.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := d.history.RecordState(ctx, st.String(), reason); err != nil {
			d.log.Warn("recording connection state", "state", st.String(), "error", err)
		}
	}
	if d.influx != nil {
		d.influx.WriteConnectionState(st.String(), reason)
	}
}

// deactivate stops the current manager and waits for in-flight wakes.
func (d *daemon) deactivate() {
	if d.current == nil {
		return
	}
	d.current.manager.Stop()
	d.current.overlay.Wait()
	d.current = nil
}

// reload re-reads the config file and replaces the activation. A config that
// fails to load leaves the running activation untouched.
func (d *daemon) reload(path string) {
	cfg, err := config.Load(path)
	if err != nil {
		d.log.Error("reload failed, keeping current configuration", "path", path, "error", err)
		return
	}
	d.log.Info("configuration reloaded", "path", path)
	d.deactivate()
	d.activate(cfg)
}

// healthCheck verifies the stores that are enabled.
func (d *daemon) healthCheck(ctx context.Context) error {
	if d.db != nil {
		if err := d.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if d.influx != nil {
		if err := d.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if d.current != nil {
		if err := d.current.manager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}

func (d *daemon) close() {
	d.deactivate()
	if d.influx != nil {
		d.log.Info("closing InfluxDB connection")
		if err := d.influx.Close(); err != nil {
			d.log.Error("error closing InfluxDB", "error", err)
		}
	}
	if d.db != nil {
		d.log.Info("closing database")
		if err := d.db.Close(); err != nil {
			d.log.Error("error closing database", "error", err)
		}
	}
}
