package transport

import (
	"fmt"
	"strconv"
	"strings"

	"showroom/internal/domain"
	"showroom/internal/repository"
	"showroom/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// keyArgs requires exactly a brand and a model
func keyArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return usagef("%s needs a brand and a model, got %d argument(s)", cmd.Name(), len(args))
	}
	return nil
}

func parsePrice(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, usagef("--%s must be a number, got %q", flag, value)
	}
	return d, nil
}

func formatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func entryRows(entries []domain.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		image := e.ImagePath
		if image == "" {
			image = "-"
		}
		rows = append(rows, []string{e.Brand, e.Model, formatPrice(e.Price), strconv.Itoa(e.Quantity), image})
	}
	return rows
}

func (c *CLI) printEntries(entries []domain.Entry) error {
	if c.structured() {
		if entries == nil {
			entries = []domain.Entry{}
		}
		return c.print(entries)
	}
	return c.table([]string{"Brand", "Model", "Price", "Qty", "Image"}, entryRows(entries))
}

func (c *CLI) printEntry(entry domain.Entry) error {
	if c.structured() {
		return c.print(entry)
	}
	return c.table([]string{"Brand", "Model", "Price", "Qty", "Image"}, entryRows([]domain.Entry{entry}))
}

func (c *CLI) newAddCmd() *cobra.Command {
	var (
		brand, model, price, image string
		quantity                   int
	)

	cmd := &cobra.Command{
		Use:   "add --brand BRAND --model MODEL --price PRICE [--quantity N] [--image PATH|URL]",
		Short: "Add a model to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePrice("price", price)
			if err != nil {
				return err
			}

			res, err := c.showroom.AddEntry(cmd.Context(), service.NewEntry{
				Brand:       brand,
				Model:       model,
				Price:       p,
				Quantity:    quantity,
				ImageSource: image,
			})
			if err != nil {
				return err
			}
			if res.ImageErr != nil {
				c.warn("%s; added without an image", describeError(res.ImageErr).Message)
			}

			if c.structured() {
				return c.print(res.Entry)
			}
			c.ok("Added %s %s", res.Entry.Brand, res.Entry.Model)
			return nil
		},
	}

	cmd.Flags().StringVar(&brand, "brand", "", "Brand name")
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringVar(&price, "price", "", "Unit price")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "Units in stock")
	cmd.Flags().StringVar(&image, "image", "", "Image file path or http(s) URL")

	return cmd
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	var (
		brand, model, price, image string
		quantity                   int
	)

	cmd := &cobra.Command{
		Use:   "update BRAND MODEL [--brand B] [--model M] [--price P] [--quantity N] [--image PATH|URL]",
		Short: "Change a catalog entry; unset flags keep their current value",
		Args:  keyArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			current, err := c.showroom.GetEntry(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			params := repository.UpdateParams{
				Brand:       current.Brand,
				Model:       current.Model,
				Price:       current.Price,
				Quantity:    current.Quantity,
				ImageSource: image,
			}
			if cmd.Flags().Changed("brand") {
				params.Brand = brand
			}
			if cmd.Flags().Changed("model") {
				params.Model = model
			}
			if cmd.Flags().Changed("price") {
				if params.Price, err = parsePrice("price", price); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("quantity") {
				params.Quantity = quantity
			}

			res, err := c.showroom.UpdateEntry(ctx, current.Key(), params)
			if err != nil {
				return err
			}
			if res.ImageErr != nil {
				c.warn("%s; kept the previous image", describeError(res.ImageErr).Message)
			}

			if c.structured() {
				return c.print(res.Entry)
			}
			c.ok("Updated %s %s", res.Entry.Brand, res.Entry.Model)
			return nil
		},
	}

	cmd.Flags().StringVar(&brand, "brand", "", "New brand name")
	cmd.Flags().StringVar(&model, "model", "", "New model name")
	cmd.Flags().StringVar(&price, "price", "", "New unit price")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "New stock level")
	cmd.Flags().StringVar(&image, "image", "", "New image file path or http(s) URL")

	return cmd
}

func (c *CLI) newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove BRAND MODEL",
		Aliases: []string{"rm"},
		Short:   "Remove a model and its image from the catalog",
		Args:    keyArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := c.showroom.RemoveEntry(cmd.Context(), domain.NewKey(args[0], args[1]))
			if err != nil {
				return err
			}
			if c.structured() {
				return c.print(removed)
			}
			c.ok("Removed %s %s", removed.Brand, removed.Model)
			return nil
		},
	}
}

// sellResult is the structured output of the sell command
type sellResult struct {
	Entry domain.Entry `json:"entry" yaml:"entry"`
	Sale  domain.Sale  `json:"sale" yaml:"sale"`
}

func (c *CLI) newSellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sell BRAND MODEL",
		Short: "Sell one unit and record the sale",
		Args:  keyArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, sale, err := c.showroom.Sell(cmd.Context(), domain.NewKey(args[0], args[1]))
			if err != nil {
				if entry.Brand != "" {
					c.warn("Stock for %s %s is now %d but the sale was not recorded", entry.Brand, entry.Model, entry.Quantity)
				}
				return err
			}
			if c.structured() {
				return c.print(sellResult{Entry: entry, Sale: sale})
			}
			c.ok("Sold %s for %s, %d left in stock", sale.Label(), formatPrice(sale.Price), entry.Quantity)
			return nil
		},
	}
}

func (c *CLI) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get BRAND MODEL",
		Short: "Show one catalog entry",
		Args:  keyArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := c.showroom.GetEntry(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.printEntry(entry)
		},
	}
}

func (c *CLI) newBrandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "brands",
		Short: "List the brands in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			brands := c.showroom.AllBrands(cmd.Context())
			if c.structured() {
				return c.print(brands)
			}
			for _, b := range brands {
				fmt.Fprintln(c.out, b)
			}
			return nil
		},
	}
}

func (c *CLI) newListCmd() *cobra.Command {
	var brand string

	cmd := &cobra.Command{
		Use:     "list [--brand BRAND]",
		Aliases: []string{"ls"},
		Short:   "List catalog entries, optionally for one brand",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if brand != "" {
				return c.printEntries(c.showroom.EntriesForBrand(cmd.Context(), brand))
			}
			return c.printEntries(c.showroom.AllEntries(cmd.Context()))
		},
	}

	cmd.Flags().StringVar(&brand, "brand", "", "Only list this brand (case-insensitive)")
	return cmd
}

func (c *CLI) newFilterCmd() *cobra.Command {
	var (
		text, minPrice, maxPrice string
		inStock                  bool
	)

	cmd := &cobra.Command{
		Use:   "filter [--text TEXT] [--min PRICE] [--max PRICE] [--in-stock]",
		Short: "Search the catalog by text, price range and availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := service.FilterParams{Text: text, InStockOnly: inStock}

			if cmd.Flags().Changed("min") {
				d, err := parsePrice("min", minPrice)
				if err != nil {
					return err
				}
				params.MinPrice = &d
			}
			if cmd.Flags().Changed("max") {
				d, err := parsePrice("max", maxPrice)
				if err != nil {
					return err
				}
				params.MaxPrice = &d
			}

			return c.printEntries(c.showroom.Filter(cmd.Context(), params))
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Match brand or model, case-insensitive")
	cmd.Flags().StringVar(&minPrice, "min", "", "Minimum price, inclusive")
	cmd.Flags().StringVar(&maxPrice, "max", "", "Maximum price, inclusive")
	cmd.Flags().BoolVar(&inStock, "in-stock", false, "Only models with stock")
	return cmd
}
