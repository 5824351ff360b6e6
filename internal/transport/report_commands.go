package transport

import (
	"fmt"
	"strconv"

	"showroom/internal/database"
	"showroom/internal/domain"
	"showroom/internal/repository"

	"github.com/spf13/cobra"
)

func (c *CLI) newSalesCmd() *cobra.Command {
	var recent bool

	cmd := &cobra.Command{
		Use:   "sales [--recent]",
		Short: "List recorded sales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sales []domain.Sale
			if recent {
				sales = c.showroom.RecentSales(cmd.Context())
			} else {
				sales = c.showroom.AllSales(cmd.Context())
			}

			if c.structured() {
				if sales == nil {
					sales = []domain.Sale{}
				}
				return c.print(sales)
			}

			rows := make([][]string, 0, len(sales))
			for _, s := range sales {
				rows = append(rows, []string{s.Timestamp.Format(repository.TimestampLayout), s.Brand, s.Model, formatPrice(s.Price)})
			}
			return c.table([]string{"Time", "Brand", "Model", "Price"}, rows)
		},
	}

	cmd.Flags().BoolVar(&recent, "recent", false, "Newest sales first")
	return cmd
}

func (c *CLI) newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show inventory value, revenue and the best-selling model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary := c.showroom.Summary(cmd.Context())
			if c.structured() {
				return c.print(summary)
			}
			return c.table([]string{"Metric", "Value"}, [][]string{
				{"Inventory value", formatPrice(summary.InventoryValue)},
				{"Revenue", formatPrice(summary.Revenue)},
				{"Sales", strconv.Itoa(summary.SalesCount)},
				{"Best seller", summary.BestSeller},
			})
		},
	}
}

func (c *CLI) newImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage catalog images",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path BRAND MODEL",
			Short: "Print the image file of a catalog entry",
			Args:  keyArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				entry, err := c.showroom.GetEntry(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if entry.ImagePath == "" {
					return usagef("%s %s has no image", entry.Brand, entry.Model)
				}
				p, err := c.showroom.ImagePath(entry.ImagePath)
				if err != nil {
					return err
				}
				if c.structured() {
					return c.print(map[string]string{"image_path": entry.ImagePath, "file": p})
				}
				fmt.Fprintln(c.out, p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Delete stored images no catalog entry refers to",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				removed, err := c.showroom.PruneImages(cmd.Context())
				if err != nil {
					return err
				}
				if c.structured() {
					if removed == nil {
						removed = []string{}
					}
					return c.print(map[string][]string{"removed": removed})
				}
				for _, p := range removed {
					fmt.Fprintln(c.out, p)
				}
				c.ok("Pruned %d image(s)", len(removed))
				return nil
			},
		},
	)

	return cmd
}

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the data files and image directory in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := database.Status(c.storage)
			if err != nil {
				return err
			}
			if c.structured() {
				return c.print(status)
			}

			rows := make([][]string, 0, len(status))
			for _, s := range status {
				state := "missing"
				if s.Exists {
					state = "ok"
				}
				rows = append(rows, []string{s.Path, state, strconv.FormatInt(s.Size, 10)})
			}
			return c.table([]string{"Path", "State", "Size"}, rows)
		},
	}
}
