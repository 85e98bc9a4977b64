// Package command provides CLI command definitions for tillvault.
package command

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tillvault-go/internal/cli/output"
	"github.com/yndnr/tillvault-go/internal/storage/backup"
	"github.com/yndnr/tillvault-go/internal/storage/snapshot"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Manage backups",
		Subcommands: []*cli.Command{
			{
				Name:   "create",
				Usage:  "Write a backup into the rotation now",
				Action: backupCreate,
			},
			{
				Name:   "list",
				Usage:  "Show the rotation slots and their state",
				Action: backupList,
			},
			{
				Name:      "restore",
				Usage:     "Restore state from a rotation slot",
				ArgsUsage: "[latest|prev1|prev2]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: backupRestore,
			},
			{
				Name:      "verify",
				Usage:     "Verify the checksum of a rotation slot or an exported file",
				ArgsUsage: "[latest|prev1|prev2|FILE]",
				Action:    backupVerify,
			},
			{
				Name:  "export",
				Usage: "Export all data to a portable file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"F"},
						Usage:   "Output file (default shop-backup-<date>.json)",
					},
					&cli.BoolFlag{
						Name:  "compress",
						Usage: "Gzip the export body",
					},
				},
				Action: backupExport,
			},
			{
				Name:      "import",
				Usage:     "Import a previously exported file, replacing all data",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: backupImport,
			},
		},
	}
}

func backupCreate(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	spinner := output.NewSpinner(os.Stderr, "Writing backup")
	spinner.Start()
	err = s.Backup(contextOf(c))
	spinner.Stop()
	if err != nil {
		return err
	}

	fmt.Println("Backup written.")
	return nil
}

func backupList(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	table := &output.Table{
		Headers: []string{"GENERATION", "STATE", "RECORDS", "CREATED"},
	}
	for _, gen := range backup.Generations() {
		snap := s.LoadBackup(gen)
		if snap == nil {
			table.AddRow(string(gen), "missing or invalid", "-", "-")
			continue
		}
		table.AddRow(string(gen), "valid",
			fmt.Sprintf("%d", snap.RecordCount()),
			time.UnixMilli(snap.Timestamp).Format("2006-01-02 15:04:05"))
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}

	meta, err := s.BackupMeta()
	if err != nil {
		return err
	}
	fmt.Printf("\nBackups written: %d", meta.Count)
	if meta.LastBackup > 0 {
		fmt.Printf(", last at %s", time.UnixMilli(meta.LastBackup).Format("2006-01-02 15:04:05"))
	}
	fmt.Println()
	return nil
}

func backupRestore(c *cli.Context) error {
	gen := backup.Generation(c.Args().First())
	if gen == "" {
		gen = backup.GenLatest
	}
	switch gen {
	case backup.GenLatest, backup.GenPrev1, backup.GenPrev2:
	default:
		return fmt.Errorf("unknown generation %q, want latest, prev1 or prev2", gen)
	}

	if !c.Bool("force") {
		fmt.Printf("Restoring '%s' replaces ALL current data. Type 'restore' to confirm: ", gen)
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "restore" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := s.Restore(contextOf(c), gen)
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d records from %s.\n", snap.RecordCount(), gen)
	return nil
}

func backupVerify(c *cli.Context) error {
	target := c.Args().First()
	if target == "" {
		target = string(backup.GenLatest)
	}

	// A file path verifies standalone, without opening the shop.
	switch backup.Generation(target) {
	case backup.GenLatest, backup.GenPrev1, backup.GenPrev2:
		s, err := openShop(c)
		if err != nil {
			return err
		}
		defer s.Close()

		snap := s.LoadBackup(backup.Generation(target))
		if snap == nil {
			return fmt.Errorf("generation %s is missing or failed verification", target)
		}
		fmt.Printf("%s: valid, %d records, checksum %s\n", target, snap.RecordCount(), snap.Checksum)
		return nil
	default:
		data, err := os.ReadFile(target)
		if err != nil {
			return fmt.Errorf("read backup file: %w", err)
		}
		snap, err := snapshot.Deserialize(data)
		if err != nil {
			return err
		}
		if !snap.Valid() {
			return fmt.Errorf("%s failed checksum verification", target)
		}
		fmt.Printf("%s: valid, %d records, checksum %s\n", target, snap.RecordCount(), snap.Checksum)
		return nil
	}
}

func backupExport(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	data, err := s.Export(contextOf(c), c.Bool("compress"))
	if err != nil {
		return err
	}

	path := c.String("file")
	if path == "" {
		path = s.ExportFileName()
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	fmt.Printf("Exported %d bytes to %s\n", len(data), path)
	return nil
}

func backupImport(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("import file required")
	}

	if !c.Bool("force") {
		fmt.Print("Importing replaces ALL current data. Type 'import' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "import" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Import(contextOf(c), data); err != nil {
		return err
	}
	fmt.Println("Import complete.")
	return nil
}
