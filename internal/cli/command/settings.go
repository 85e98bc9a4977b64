// Package command provides CLI command definitions for tillvault.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// SettingsCommand returns the settings subcommand group.
func SettingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Show and change shop settings",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the current settings",
				Action: settingsShow,
			},
			{
				Name:  "set",
				Usage: "Change settings fields",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "shop-name",
						Usage: "Shop display name",
					},
					&cli.StringFlag{
						Name:  "shop-address",
						Usage: "Shop address",
					},
					&cli.StringFlag{
						Name:  "currency",
						Usage: "Currency code (e.g. USD)",
					},
					&cli.IntFlag{
						Name:  "reversal-window",
						Usage: "Sale reversal window in hours",
					},
					&cli.StringFlag{
						Name:  "receipt-footer",
						Usage: "Footer line on receipts",
					},
					&cli.StringFlag{
						Name:  "staff",
						Usage: "Operator staff ID",
					},
				},
				Action: settingsSet,
			},
		},
	}
}

func settingsShow(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	settings, err := s.Settings.Get(contextOf(c))
	if err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, settings)
}

func settingsSet(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := contextOf(c)
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return err
	}

	changed := false
	if v := c.String("shop-name"); v != "" {
		settings.ShopName = v
		changed = true
	}
	if v := c.String("shop-address"); v != "" {
		settings.ShopAddress = v
		changed = true
	}
	if v := c.String("currency"); v != "" {
		settings.Currency = v
		changed = true
	}
	if c.IsSet("reversal-window") {
		settings.ReversalWindowHours = c.Int("reversal-window")
		changed = true
	}
	if c.IsSet("receipt-footer") {
		settings.ReceiptFooter = c.String("receipt-footer")
		changed = true
	}
	if !changed {
		return fmt.Errorf("nothing to change, pass at least one settings flag")
	}

	if err := s.Settings.Update(ctx, settings, c.String("staff")); err != nil {
		return err
	}
	fmt.Println("Settings updated.")
	return nil
}
