// Package command provides CLI command definitions for tillvault.
package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tillvault-go/internal/cli/output"
	"github.com/yndnr/tillvault-go/internal/config"
	"github.com/yndnr/tillvault-go/internal/infra/buildinfo"
	"github.com/yndnr/tillvault-go/internal/infra/confloader"
	"github.com/yndnr/tillvault-go/internal/shop"
	"github.com/yndnr/tillvault-go/internal/telemetry/logger"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "tillvault",
		Usage:   "Shop inventory and sales store",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ProductCommand(),
			SaleCommand(),
			BackupCommand(),
			SettingsCommand(),
			ConfigCommand(),
			ServeCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file path (YAML)",
			EnvVars: []string{"TILLVAULT_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Data directory (overrides config)",
		},
		&cli.StringFlag{
			Name:  "backup-dir",
			Usage: "Backup directory (overrides config)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
	}
}

// loadConfig builds the effective configuration from defaults, the
// config file, environment, and flag overrides, in that order.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if dir := c.String("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if dir := c.String("backup-dir"); dir != "" {
		cfg.Backup.Dir = dir
	}
	if c.Bool("verbose") {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// openShop loads the configuration and opens the shop.
func openShop(c *cli.Context) (*shop.Shop, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	log := logger.NewSlog(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return shop.Open(contextOf(c), shop.Options{Config: cfg, Logger: log})
}

// contextOf returns the command context, falling back to Background.
func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}

// formatterFor builds the output formatter selected by --output.
func formatterFor(c *cli.Context) output.Formatter {
	return output.NewFormatter(output.Format(c.String("output")), false)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
