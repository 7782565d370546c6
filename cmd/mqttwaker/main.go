// mqttwaker keeps a display-side MQTT subscription alive and turns command
// messages into display actions: "wake" lights the screen and optionally opens
// a dashboard, "lock" locks the session.
//
// Usage:
//
//	mqttwaker [--config PATH] [--history N] [--version]
//
// SIGHUP reloads the configuration and re-creates the broker connection.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/mqttwaker/migrations"

	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configPathEnv     = "MQTTWAKER_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	configPath  string
	history     int
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("mqttwaker", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to config file (env "+configPathEnv+")")
	fs.IntVar(&opts.history, "history", 0, "print the N most recent command history events and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.history < 0 {
		return options{}, errors.New("--history must not be negative")
	}
	return opts, nil
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "mqttwaker %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()

	configPath := getConfigPath(opts.configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)

	if opts.history > 0 {
		return printHistory(ctx, cfg, opts.history, stdout)
	}

	log.Info("starting mqttwaker",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", configPath,
	)

	d, err := newDaemon(cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.healthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	d.activate(cfg)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown signal received, cleaning up")
			d.deactivate()
			log.Info("mqttwaker stopped")
			return nil
		case <-hup:
			d.reload(configPath)
		}
	}
}

// getConfigPath resolves the config file: flag, then environment, then default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	return defaultConfigPath
}
