// Package command provides CLI command definitions for tillvault.
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tillvault-go/internal/cli/output"
	"github.com/yndnr/tillvault-go/internal/core/domain"
	"github.com/yndnr/tillvault-go/internal/core/service"
)

// ProductCommand returns the product subcommand group.
func ProductCommand() *cli.Command {
	return &cli.Command{
		Name:    "product",
		Aliases: []string{"prod"},
		Usage:   "Manage the product catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a product",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Product name",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "barcode",
						Aliases: []string{"b"},
						Usage:   "Barcode (unique when set)",
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category",
					},
					&cli.Int64Flag{
						Name:     "price",
						Aliases:  []string{"p"},
						Usage:    "Unit price in cents",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "stock",
						Usage: "Initial stock",
					},
					&cli.Int64Flag{
						Name:  "min-stock",
						Usage: "Low-stock alert threshold (0 disables)",
					},
					&cli.StringFlag{
						Name:  "staff",
						Usage: "Operator staff ID, for the audit trail",
					},
				},
				Action: productAdd,
			},
			{
				Name:  "list",
				Usage: "List products",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only this category",
					},
				},
				Action: productList,
			},
			{
				Name:      "get",
				Usage:     "Show one product",
				ArgsUsage: "PRODUCT_ID|BARCODE",
				Action:    productGet,
			},
			{
				Name:      "search",
				Usage:     "Search products by name",
				ArgsUsage: "QUERY",
				Action:    productSearch,
			},
			{
				Name:   "categories",
				Usage:  "List distinct categories",
				Action: productCategories,
			},
			{
				Name:   "low-stock",
				Usage:  "List products at or below their alert threshold",
				Action: productLowStock,
			},
			{
				Name:      "stock",
				Usage:     "Adjust stock by a signed delta",
				ArgsUsage: "PRODUCT_ID DELTA",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "staff",
						Usage: "Operator staff ID",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Adjustment reason",
					},
				},
				Action: productStock,
			},
			{
				Name:      "delete",
				Usage:     "Delete a product",
				ArgsUsage: "PRODUCT_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
					&cli.StringFlag{
						Name:  "staff",
						Usage: "Operator staff ID",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "Deletion reason",
					},
				},
				Action: productDelete,
			},
		},
	}
}

func productAdd(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	product, err := s.Products.Create(contextOf(c), &service.CreateProductRequest{
		Name:     c.String("name"),
		Barcode:  c.String("barcode"),
		Category: c.String("category"),
		Price:    c.Int64("price"),
		Stock:    c.Int64("stock"),
		MinStock: c.Int64("min-stock"),
		StaffID:  c.String("staff"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Product added: %s\n", product.ID)
	return nil
}

func productList(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	var products []*domain.Product
	if category := c.String("category"); category != "" {
		products, err = s.Products.ListByCategory(contextOf(c), category)
	} else {
		products, err = s.Products.List(contextOf(c))
	}
	if err != nil {
		return err
	}
	return renderProducts(c, products)
}

func productGet(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return fmt.Errorf("product ID or barcode required")
	}

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := contextOf(c)
	product, err := s.Products.Get(ctx, key)
	if domain.IsDomainError(err, domain.ErrProductNotFound.Code) {
		product, err = s.Products.GetByBarcode(ctx, key)
	}
	if err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, product)
}

func productSearch(c *cli.Context) error {
	query := c.Args().First()
	if query == "" {
		return fmt.Errorf("search query required")
	}

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	products, err := s.Products.Search(contextOf(c), query)
	if err != nil {
		return err
	}
	return renderProducts(c, products)
}

func productCategories(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	categories, err := s.Products.ListCategories(contextOf(c))
	if err != nil {
		return err
	}
	for _, cat := range categories {
		fmt.Println(cat)
	}
	return nil
}

func productLowStock(c *cli.Context) error {
	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	products, err := s.Products.LowStockAlerts(contextOf(c))
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Println("No low-stock products.")
		return nil
	}
	return renderProducts(c, products)
}

func productStock(c *cli.Context) error {
	id := c.Args().Get(0)
	deltaArg := c.Args().Get(1)
	if id == "" || deltaArg == "" {
		return fmt.Errorf("usage: product stock PRODUCT_ID DELTA")
	}
	var delta int64
	if _, err := fmt.Sscanf(deltaArg, "%d", &delta); err != nil {
		return fmt.Errorf("delta must be a signed integer: %q", deltaArg)
	}

	s, err := openShop(c)
	if err != nil {
		return err
	}
	defer s.Close()

	product, err := s.Products.AdjustStock(contextOf(c), id, delta, c.String("staff"), c.String("reason"))
	if err != nil {
		return err
	}

	fmt.Printf("%s: stock now %d\n", product.Name, product.Stock)
	return nil
}

func productDelete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("product ID required")
	}

	if !c.Bool("force") {
		fmt.Printf("Are you sure you want to delete product '%s'? [y/N]: ", id)
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

	if err := s.Products.Delete(contextOf(c), id, c.String("staff"), c.String("reason")); err != nil {
		return err
	}
	fmt.Printf("Product %s deleted.\n", id)
	return nil
}

func renderProducts(c *cli.Context, products []*domain.Product) error {
	switch output.Format(c.String("output")) {
	case output.FormatJSON, output.FormatYAML:
		return formatterFor(c).Format(os.Stdout, products)
	default:
		table := &output.Table{
			Headers: []string{"ID", "NAME", "CATEGORY", "PRICE", "STOCK", "MIN"},
		}
		for _, p := range products {
			table.AddRow(p.ID, p.Name, orDash(p.Category),
				centsToDisplay(p.Price),
				fmt.Sprintf("%d", p.Stock),
				fmt.Sprintf("%d", p.MinStock))
		}
		if err := table.Render(os.Stdout); err != nil {
			return err
		}
		fmt.Printf("\nTotal: %d products\n", len(products))
		return nil
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// centsToDisplay renders integer cents as a decimal amount.
func centsToDisplay(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
