// Package command provides CLI command definitions for tillvault.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tillvault-go/internal/cli/output"
	"github.com/yndnr/tillvault-go/internal/config"
	"github.com/yndnr/tillvault-go/internal/infra/buildinfo"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: configShow,
			},
			{
				Name:   "version",
				Usage:  "Print build information",
				Action: configVersion,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := config.Verify(cfg); err != nil {
		return err
	}

	switch output.Format(c.String("output")) {
	case output.FormatJSON:
		return (&output.JSONFormatter{}).Format(os.Stdout, cfg)
	case output.FormatYAML:
		return (&output.YAMLFormatter{}).Format(os.Stdout, cfg)
	default:
		table := &output.Table{Headers: []string{"KEY", "VALUE"}}
		table.AddRow("storage.data_dir", cfg.Storage.DataDir)
		table.AddRow("storage.gc_interval", cfg.Storage.GCInterval.String())
		table.AddRow("storage.cache_size", fmt.Sprintf("%d", cfg.Storage.CacheSize))
		table.AddRow("storage.sync_writes", fmt.Sprintf("%t", cfg.Storage.SyncWrites))
		table.AddRow("backup.dir", cfg.Backup.Dir)
		table.AddRow("backup.compress", fmt.Sprintf("%t", cfg.Backup.Compress))
		table.AddRow("backup.quiet_period", cfg.Backup.QuietPeriod.String())
		table.AddRow("backup.digest_tier", cfg.Backup.DigestTier)
		table.AddRow("log.level", cfg.Log.Level)
		table.AddRow("log.format", cfg.Log.Format)
		return table.Render(os.Stdout)
	}
}

func configVersion(c *cli.Context) error {
	return formatterFor(c).Format(os.Stdout, buildinfo.Get())
}
