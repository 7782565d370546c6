package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/mqttwaker/internal/action"
	"github.com/nerrad567/mqttwaker/internal/command"
	"github.com/nerrad567/mqttwaker/internal/history"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/config"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/database"
	"github.com/nerrad567/mqttwaker/internal/infrastructure/logging"
)

// writeConfig writes a config with an empty broker and a temp database and
// returns the config and database paths.
func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")
	content := `
mqtt:
  broker_uri: ""
  topic: ""
database:
  enabled: true
  path: "` + dbPath + `"
logging:
  level: error
` + extra
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, dbPath
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configPathEnv, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, nil, io.Discard); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &out); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "mqttwaker "+version) {
		t.Errorf("version output = %q, want prefix %q", out.String(), "mqttwaker "+version)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	if err := run(context.Background(), []string{"--bogus"}, io.Discard); err == nil {
		t.Fatal("run() should fail on an unknown flag")
	}
}

func TestRun_BlankBrokerRunsUntilCancelled(t *testing.T) {
	configPath, dbPath := writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, []string{"--config", configPath}, io.Discard); err != nil {
		t.Fatalf("run() error = %v, want nil after cancellation", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created at %s: %v", dbPath, err)
	}
}

func TestRun_History(t *testing.T) {
	configPath, _ := writeConfig(t, "")

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := history.NewSQLiteRepository(db.DB)
	records := []command.Record{
		{Topic: "home/display", Payload: "on", Command: command.Wake, Handled: true, Outcome: action.Succeeded(), Received: time.Now().Add(-time.Minute)},
		{Topic: "home/display", Payload: "off", Command: command.Lock, Handled: true, Outcome: action.NeedsPermission(), Received: time.Now()},
	}
	for _, rec := range records {
		if err := repo.RecordCommand(context.Background(), rec); err != nil {
			t.Fatalf("RecordCommand() error = %v", err)
		}
	}
	db.Close()

	var out bytes.Buffer
	if err := run(context.Background(), []string{"--config", configPath, "--history", "5"}, &out); err != nil {
		t.Fatalf("run(--history) error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("history output has %d lines, want 3:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "COMMAND") {
		t.Errorf("header = %q, want column names", lines[0])
	}
	if !strings.Contains(lines[1], "lock") || !strings.Contains(lines[1], "permission_required") {
		t.Errorf("first row = %q, want newest lock event", lines[1])
	}
	if !strings.Contains(lines[2], "wake") || !strings.Contains(lines[2], "success") {
		t.Errorf("second row = %q, want wake event", lines[2])
	}
}

func TestRun_HistoryDisabled(t *testing.T) {
	configPath, _ := writeConfig(t, "")

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Database.Enabled = false
	if err := printHistory(context.Background(), cfg, 5, io.Discard); err == nil {
		t.Fatal("printHistory() should fail when history is disabled")
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{name: "no flags", args: nil, want: options{}},
		{name: "long config", args: []string{"--config", "/etc/mqttwaker.yaml"}, want: options{configPath: "/etc/mqttwaker.yaml"}},
		{name: "short config", args: []string{"-c", "a.yaml"}, want: options{configPath: "a.yaml"}},
		{name: "history", args: []string{"--history", "10"}, want: options{history: 10}},
		{name: "version", args: []string{"--version"}, want: options{showVersion: true}},
		{name: "negative history", args: []string{"--history", "-1"}, wantErr: true},
		{name: "bad history", args: []string{"--history", "ten"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv(configPathEnv, "")
	if got := getConfigPath(""); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want default %q", got, defaultConfigPath)
	}

	t.Setenv(configPathEnv, "/env/config.yaml")
	if got := getConfigPath(""); got != "/env/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env path", got)
	}
	if got := getConfigPath("/flag/config.yaml"); got != "/flag/config.yaml" {
		t.Errorf("getConfigPath(flag) = %q, want flag path", got)
	}
}

func TestDaemon_Reload(t *testing.T) {
	configPath, _ := writeConfig(t, "")
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	log := logging.NewWithWriter(cfg.Logging, "test", io.Discard)
	d, err := newDaemon(cfg, log)
	if err != nil {
		t.Fatalf("newDaemon() error = %v", err)
	}
	defer d.close()

	first := d.activate(cfg)

	if err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0600); err != nil {
		t.Fatal(err)
	}
	d.reload(configPath)
	if d.current != first {
		t.Fatal("reload with a broken config replaced the activation")
	}

	updated := `
mqtt:
  broker_uri: ""
display:
  browser_url: "https://dashboard.local"
database:
  enabled: true
  path: "` + cfg.Database.Path + `"
`
	if err := os.WriteFile(configPath, []byte(updated), 0600); err != nil {
		t.Fatal(err)
	}
	d.reload(configPath)
	if d.current == first || d.current == nil {
		t.Fatal("reload with a valid config kept the old activation")
	}
	if d.current.cfg.Display.BrowserURL != "https://dashboard.local" {
		t.Errorf("BrowserURL = %q, want reloaded value", d.current.cfg.Display.BrowserURL)
	}
}
