// Package cli implements the camper-configurator operator command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/camper-configurator/internal/auth"
	"github.com/noah-isme/camper-configurator/internal/obs"
	"github.com/noah-isme/camper-configurator/internal/pricetable"
	"github.com/noah-isme/camper-configurator/internal/product"
	"github.com/noah-isme/camper-configurator/internal/session"
)

type options struct {
	sheet      string
	codeColumn string
	product    string
	country    string
	selections []string
	asJSON     bool
	verbose    bool
}

// NewRootCmd builds the command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "configurator",
		Short: "Price camper van configurations offline",
		Long: `configurator prices a configuration against a price sheet without the API.

Examples:
  configurator columns --sheet pegasus.csv
  configurator quote --product pegasus --sheet pegasus.csv --country "Slovenia 22% VAT" --select regular,auto-gearbox
  configurator payload --product womondo --select w600,fiat,drive-pack`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().StringVar(&opts.sheet, "sheet", "", "price sheet CSV file (catalog prices when empty)")
	root.PersistentFlags().StringVar(&opts.codeColumn, "code-column", pricetable.DefaultCodeColumn, "header of the product code column")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log degraded code mappings to stderr")

	root.AddCommand(columnsCmd(opts), productsCmd(), quoteCmd(opts), payloadCmd(opts), hashKeyCmd())
	return root
}

// Execute runs the command line against os.Args.
func Execute() error {
	return NewRootCmd(os.Stdout).Execute()
}

func loadSheet(opts *options) (*pricetable.Table, error) {
	if opts.sheet == "" {
		return nil, nil
	}
	f, err := os.Open(opts.sheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pricetable.Parse(f, pricetable.ParseOptions{CodeColumn: opts.codeColumn})
}

func columnsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "List the country columns of a price sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.sheet == "" {
				return fmt.Errorf("--sheet is required")
			}
			tbl, err := loadSheet(opts)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "rows: %d\n", len(tbl.Rows()))
			fmt.Fprintf(w, "columns: %s\n", strings.Join(tbl.Columns(), ", "))
			return nil
		},
	}
}

func productsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products [product]",
		Short: "List product lines or the options of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := product.Default()
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, key := range reg.Keys() {
					def, _ := reg.Get(key)
					fmt.Fprintf(w, "%s\t%s\n", key, def.Name)
				}
				return nil
			}
			def, err := reg.Get(args[0])
			if err != nil {
				return err
			}
			for _, cat := range def.Catalog.Categories() {
				fmt.Fprintf(w, "%s (%s)\n", cat.Title, cat.Cardinality)
				for _, o := range cat.Options {
					fmt.Fprintf(w, "  %-20s %-10s %s\n", o.ID, o.Code, o.Name)
					for _, a := range o.Addons {
						fmt.Fprintf(w, "    %-18s %-10s %s\n", a.ID, a.Code, a.Name)
					}
				}
			}
			return nil
		},
	}
}

// configure builds a throwaway session and applies the selections in order.
func configure(opts *options) (*session.Session, error) {
	def, err := product.Default().Get(opts.product)
	if err != nil {
		return nil, err
	}
	tbl, err := loadSheet(opts)
	if err != nil {
		return nil, err
	}
	var sessOpts []session.Option
	if opts.verbose {
		sessOpts = append(sessOpts, session.WithLogger(obs.NewLogger("console", "warn")))
	}
	s := session.New("cli", def, pricetable.Static{T: tbl}, opts.country, sessOpts...)
	for _, raw := range opts.selections {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, err := s.Toggle(id); err != nil {
			return nil, fmt.Errorf("select %s: %w", id, err)
		}
	}
	return s, nil
}

func selectionFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().StringVarP(&opts.product, "product", "p", "pegasus", "product line")
	cmd.Flags().StringVarP(&opts.country, "country", "c", "", "country label (product default when empty)")
	cmd.Flags().StringSliceVarP(&opts.selections, "select", "s", nil, "option or addon ids to toggle, in order")
}

func quoteCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the configuration summary and total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := configure(opts)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), s.View())
			}
			_, err = io.WriteString(cmd.OutOrStdout(), s.CurrentSummaryText())
			return err
		},
	}
	selectionFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full session view as JSON")
	return cmd
}

func payloadCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Print the submission payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := configure(opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s.ExportPayload())
		},
	}
	selectionFlags(cmd, opts)
	return cmd
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <admin-key>",
		Short: "Hash an admin key for ADMIN_API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
