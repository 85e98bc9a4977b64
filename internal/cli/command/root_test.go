package command

import (
	"flag"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestApp(t *testing.T) {
	app := App()
	if app == nil {
		t.Fatal("App() returned nil")
	}

	if app.Name != "tillvault" {
		t.Errorf("Name = %q, want %q", app.Name, "tillvault")
	}
	if app.Usage == "" {
		t.Error("Usage should not be empty")
	}

	commandNames := make(map[string]bool)
	for _, cmd := range app.Commands {
		commandNames[cmd.Name] = true
	}

	requiredCommands := []string{"product", "sale", "backup", "settings", "config", "serve"}
	for _, name := range requiredCommands {
		if !commandNames[name] {
			t.Errorf("missing required command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	app := App()

	flagNames := make(map[string]bool)
	for _, f := range app.Flags {
		flagNames[f.Names()[0]] = true
	}

	requiredFlags := []string{"config", "data-dir", "backup-dir", "output", "verbose"}
	for _, name := range requiredFlags {
		if !flagNames[name] {
			t.Errorf("missing required flag: %s", name)
		}
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	app := App()

	set := flag.NewFlagSet("test", 0)
	set.String("config", "", "")
	set.String("data-dir", "", "")
	set.String("backup-dir", "", "")
	set.Bool("verbose", false, "")
	if err := set.Set("data-dir", "/tmp/till-data"); err != nil {
		t.Fatal(err)
	}
	if err := set.Set("backup-dir", "/tmp/till-backups"); err != nil {
		t.Fatal(err)
	}
	if err := set.Set("verbose", "true"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(cli.NewContext(app, set, nil))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/till-data" {
		t.Errorf("DataDir = %q, want /tmp/till-data", cfg.Storage.DataDir)
	}
	if cfg.Backup.Dir != "/tmp/till-backups" {
		t.Errorf("Backup.Dir = %q, want /tmp/till-backups", cfg.Backup.Dir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug after --verbose", cfg.Log.Level)
	}
}

func TestCentsToDisplay(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{350, "3.50"},
		{123456, "1234.56"},
		{-250, "-2.50"},
	}

	for _, tt := range tests {
		if got := centsToDisplay(tt.cents); got != tt.want {
			t.Errorf("centsToDisplay(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
