// Package transport exposes the showroom service as a command line interface.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"showroom/internal/config"
	"showroom/internal/service"

	"github.com/fatih/color"
	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	okLabel   = color.New(color.FgGreen)
	warnLabel = color.New(color.FgYellow)
	errLabel  = color.New(color.FgRed)
)

// CLI maps command line invocations onto a Showroom
type CLI struct {
	showroom service.Showroom
	storage  config.StorageConfig
	logger   *zap.Logger

	format string
	out    io.Writer
	errOut io.Writer
}

// NewCLI creates a new CLI over showroom. storage is used by the status command.
func NewCLI(showroom service.Showroom, storage config.StorageConfig, logger *zap.Logger) *CLI {
	return &CLI{
		showroom: showroom,
		storage:  storage,
		logger:   logger,
		format:   FormatTable,
		out:      os.Stdout,
		errOut:   os.Stderr,
	}
}

// SetOutput redirects command output and error output
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.out = out
	c.errOut = errOut
}

// Command builds the root command with every subcommand attached
func (c *CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "showroom [command] [flags]",
		Short: "Showroom - manage a vehicle catalog, its images and sales",
		Long: `Showroom manages a vehicle catalog with stock levels and images,
records every sale in an append-only ledger and reports on both.

Examples:
  # Add a model with an image from the web
  showroom add --brand Toyota --model Corolla --price 20000 --quantity 5 --image https://example.com/corolla.png

  # Sell one unit
  showroom sell Toyota Corolla

  # Models under 25000 that are in stock
  showroom filter --max 25000 --in-stock

  # Sales report as JSON
  showroom report -o json`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.format = strings.ToLower(c.format)
			switch c.format {
			case FormatTable, FormatJSON, FormatYAML:
				return nil
			default:
				return usagef("unknown output format %q (use table, json or yaml)", c.format)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&c.format, "output", "o", FormatTable, "Output format: table, json or yaml")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usagef("%v", err)
	})

	root.AddCommand(
		c.newAddCmd(),
		c.newUpdateCmd(),
		c.newRemoveCmd(),
		c.newSellCmd(),
		c.newGetCmd(),
		c.newBrandsCmd(),
		c.newListCmd(),
		c.newFilterCmd(),
		c.newSalesCmd(),
		c.newReportCmd(),
		c.newImageCmd(),
		c.newStatusCmd(),
	)

	root.SetOut(c.out)
	root.SetErr(c.errOut)
	return root
}

// Execute runs the command line in args and returns the process exit code
func (c *CLI) Execute(ctx context.Context, args []string) int {
	root := c.Command()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		c.printError(err)
		return 1
	}
	return 0
}

func (c *CLI) structured() bool {
	return c.format == FormatJSON || c.format == FormatYAML
}

// print writes v as JSON or YAML. Callers handle the table format themselves.
func (c *CLI) print(v any) error {
	return c.encode(c.out, v)
}

func (c *CLI) encode(w io.Writer, v any) error {
	switch c.format {
	case FormatYAML:
		data, err := yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.IndentSequence(false))
		if err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func (c *CLI) table(headers []string, rows [][]string) error {
	t := tablewriter.NewTable(c.out)

	h := make([]any, len(headers))
	for i, v := range headers {
		h[i] = v
	}
	t.Header(h...)

	for _, row := range rows {
		r := make([]any, len(row))
		for i, v := range row {
			r[i] = v
		}
		if err := t.Append(r...); err != nil {
			return err
		}
	}
	return t.Render()
}

func (c *CLI) ok(format string, args ...any) {
	okLabel.Fprint(c.out, "OK ")
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *CLI) warn(format string, args ...any) {
	warnLabel.Fprint(c.errOut, "Warning: ")
	fmt.Fprintf(c.errOut, format+"\n", args...)
}
