package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-importer/internal/gcs"
	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/statement"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (c *cli) newParseCmd() *cobra.Command {
	var (
		format  string
		rawJSON bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file|gs://bucket/object>",
		Short: "Show how a statement is read, without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.ctx(cmd)
			source := args[0]

			data, err := c.app.ReadSource(ctx, source, os.ReadFile)
			if err != nil {
				return err
			}

			filename := filepath.Base(source)
			if gcs.IsURI(source) {
				filename = gcs.FilenameFromURI(source)
			}
			f := statement.DetectFormat(filename, "")
			if format != "" {
				var ok bool
				if f, ok = statement.ParseFormat(format); !ok {
					return fmt.Errorf("unknown format %q", format)
				}
			}

			rows, err := statement.AdapterFor(f).Parse(data)
			if err != nil {
				return err
			}

			if rawJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			pterm.Info.Printf("%s read as %s: %d rows\n", filename, f, len(rows))
			return pterm.DefaultTable.WithHasHeader().WithData(rowTable(ctx, rows)).Render()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "statement format (text, spreadsheet, pdf)")
	cmd.Flags().BoolVar(&rawJSON, "json", false, "print the canonical rows as JSON")

	return cmd
}

// rowTable shows each canonical row with the withdrawal and rule category
// an import would derive from it.
func rowTable(ctx context.Context, rows []statement.CanonicalRow) pterm.TableData {
	classifier := importer.NewClassifier(nil, nil)

	data := pterm.TableData{{"Date", "Description", "Withdrawal", "Rule category"}}
	for _, row := range rows {
		description := importer.BuildDescription(row)

		withdrawal := "-"
		if amount, ok := importer.ResolveWithdrawal(row); ok {
			withdrawal = amount.StringFixed(2)
		}

		category := classifier.Classify(ctx, description, nil)
		if category == "" {
			category = "-"
		}

		data = append(data, []string{statement.Value(row.Date), description, withdrawal, category})
	}
	return data
}
