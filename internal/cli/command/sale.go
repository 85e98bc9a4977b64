// Package command provides CLI command definitions for tillvault.
package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tillvault-go/internal/cli/output"
	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/core/service"
	"github.com/yndnr/tillvault-go/internal/shop"
)

// SaleCommand returns the sale subcommand group.
func SaleCommand() *cli.Command {
	return &cli.Command{
		Name:  "sale",
		Usage: "Record and query sales",
		Subcommands: []*cli.Command{
			{
				Name:  "record",
				Usage: "Record a sale",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "item",
						Aliases:  []string{"i"},
						Usage:    "Sale line as PRODUCT_ID:QTY (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "payment",
						Aliases:  []string{"p"},
						Usage:    "Payment method (cash, card, ...)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "staff",
						Usage: "Operator staff ID",
					},
					&cli.StringFlag{
						Name:  "customer",
						Usage: "Customer reference",
					},
				},
				Action: saleRecord,
			},
			{
				Name:      "show",
				Usage:     "Show one sale",
				ArgsUsage: "SALE_ID",
				Action:    saleShow,
			},
			{
				Name:      "reverse",
				Usage:     "Reverse a sale and restore its stock",
				ArgsUsage: "SALE_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "reason",
						Usage:    "Reversal reason",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "staff",
						Usage: "Operator staff ID",
					},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: saleReverse,
			},
			{
				Name:  "list",
				Usage: "List sales in a date range",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "from",
						Usage: "Range start (YYYY-MM-DD), default today",
					},
					&cli.StringFlag{
						Name:  "to",
						Usage: "Range end (YYYY-MM-DD), inclusive, default today",
					},
					&cli.BoolFlag{
						Name:  "include-reversed",
						Usage: "Include reversed sales",
					},
				},
				Action: saleList,
			},
			{
				Name:  "summary",
				Usage: "Summarize completed sales",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "day",
						Usage: "Daily summary for YYYY-MM-DD (default today)",
					},
					&cli.StringFlag{
						Name:  "month",
						Usage: "Monthly summary for YYYY-MM",
					},
				},
				Action: saleSummary,
			},
		},
	}
}

// parseSaleItems resolves PRODUCT_ID:QTY pairs against the catalog.
func parseSaleItems(c *cli.Context, s *shop.Shop) ([]domain.SaleItem, error) {
	var items []domain.SaleItem
	for _, raw := range c.StringSlice("item") {
		idx := strings.LastIndex(raw, ":")
		if idx <= 0 || idx == len(raw)-1 {
			return nil, fmt.Errorf("item must be PRODUCT_ID:QTY, got %q", raw)
		}
		qty, err := strconv.ParseInt(raw[idx+1:], 10, 64)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("item quantity must be a positive integer, got %q", raw[idx+1:])
		}
		product, err := s.Products.Get(contextOf(c), raw[:idx])
		if err != nil {
			return nil, err
		}
		items = append(items, domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    qty,
			UnitPrice:   product.Price,
		})
	}
	return items, nil
}

func saleRecord(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := parseSaleItems(c, s)
	if err != nil {
		return err
	}

	sale, err := s.Sales.RecordSale(contextOf(c), &service.RecordSaleRequest{
		Items:         items,
		PaymentMethod: c.String("payment"),
		StaffID:       c.String("staff"),
		Customer:      c.String("customer"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Sale recorded: %s\n", sale.ID)
	fmt.Printf("  Total: %s\n", centsToDisplay(sale.TotalAmount))
	if sale.Receipt != nil {
		fmt.Printf("  Receipt: #%d\n", sale.Receipt.Number)
	}
	return nil
}

func saleShow(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("sale ID required")
	}

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	sale, err := s.Sales.GetSale(contextOf(c), id)
	if err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, sale)
}

func saleReverse(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("sale ID required")
	}

	if !c.Bool("force") {
		fmt.Printf("Reverse sale '%s' and restore its stock? [y/N]: ", id)
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	sale, err := s.Sales.ReverseSale(contextOf(c), id, c.String("staff"), c.String("reason"))
	if err != nil {
		return err
	}
	fmt.Printf("Sale %s reversed, %s returned to stock.\n", sale.ID, centsToDisplay(sale.TotalAmount))
	return nil
}

func saleList(c *cli.Context) error {
	now := time.Now()
	from, err := parseDayFlag(c.String("from"), now)
	if err != nil {
		return err
	}
	to, err := parseDayFlag(c.String("to"), now)
	if err != nil {
		return err
	}
	// Inclusive end of the "to" day.
	toEnd := to.AddDate(0, 0, 1).UnixMilli() - 1

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	sales, err := s.Sales.SalesByDateRange(contextOf(c), from.UnixMilli(), toEnd, c.Bool("include-reversed"))
	if err != nil {
		return err
	}
	return renderSales(c, sales)
}

func saleSummary(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	var summary *service.Summary
	if month := c.String("month"); month != "" {
		t, err := time.ParseInLocation("2006-01", month, time.Local)
		if err != nil {
			return fmt.Errorf("month must be YYYY-MM, got %q", month)
		}
		summary, err = s.Sales.MonthlySummary(contextOf(c), t)
		if err != nil {
			return err
		}
	} else {
		day, err := parseDayFlag(c.String("day"), time.Now())
		if err != nil {
			return err
		}
		summary, err = s.Sales.DailySummary(contextOf(c), day)
		if err != nil {
			return err
		}
	}

	switch output.Format(c.String("output")) {
	case output.FormatJSON, output.FormatYAML:
		return formatterFor(c).Format(os.Stdout, summary)
	default:
		fmt.Printf("Sales:   %d\n", summary.SalesCount)
		fmt.Printf("Revenue: %s\n", centsToDisplay(summary.TotalAmount))
		fmt.Printf("Items:   %d\n", summary.ItemsSold)
		if len(summary.ByPayment) > 0 {
			fmt.Println("By payment method:")
			for method, b := range summary.ByPayment {
				fmt.Printf("  %-8s %3d sales  %s\n", method, b.Count, centsToDisplay(b.Amount))
			}
		}
		return nil
	}
}

// parseDayFlag parses YYYY-MM-DD in the local zone, defaulting to the
// day containing fallback.
func parseDayFlag(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return time.Date(fallback.Year(), fallback.Month(), fallback.Day(), 0, 0, 0, 0, fallback.Location()), nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got %q", value)
	}
	return t, nil
}

func renderSales(c *cli.Context, sales []*domain.Sale) error {
	switch output.Format(c.String("output")) {
	case output.FormatJSON, output.FormatYAML:
		return formatterFor(c).Format(os.Stdout, sales)
	default:
		table := &output.Table{
			Headers: []string{"ID", "DATE", "TOTAL", "PAYMENT", "ITEMS", "STATUS"},
		}
		for _, sale := range sales {
			table.AddRow(
				sale.ID,
				time.UnixMilli(sale.Date).Format("2006-01-02 15:04"),
				centsToDisplay(sale.TotalAmount),
				sale.PaymentMethod,
				fmt.Sprintf("%d", len(sale.Items)),
				string(sale.Status),
			)
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d sales\n", len(sales))
		return nil
	}
}
