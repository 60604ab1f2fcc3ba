package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-importer/internal/gcs"
	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/statement"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type importFlags struct {
	Format           string
	NoNewCategories  bool
	KeepDuplicates   bool
	ShowTransactions bool
}

func (c *cli) newImportCmd() *cobra.Command {
	flags := &importFlags{}

	cmd := &cobra.Command{
		Use:   "import <file|gs://bucket/object>",
		Short: "Import a bank statement",
		Long: `Import a CSV, TXT, XLS/XLSX or PDF bank statement.

Withdrawals are categorised, checked for duplicates and stored. Rows that are
not imported are listed with the reason they were skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.Format, "format", "f", "", "statement format (text, spreadsheet, pdf); detected from the file name when empty")
	cmd.Flags().BoolVar(&flags.NoNewCategories, "no-new-categories", false, "leave transactions uncategorised instead of creating missing categories")
	cmd.Flags().BoolVar(&flags.KeepDuplicates, "keep-duplicates", false, "store transactions that already exist")
	cmd.Flags().BoolVarP(&flags.ShowTransactions, "show", "s", true, "print the imported transactions")

	return cmd
}

func (c *cli) runImport(cmd *cobra.Command, source string, flags *importFlags) error {
	ctx := c.ctx(cmd)

	data, err := c.app.ReadSource(ctx, source, os.ReadFile)
	if err != nil {
		return err
	}

	filename := filepath.Base(source)
	if gcs.IsURI(source) {
		filename = gcs.FilenameFromURI(source)
	}

	opts := importer.DefaultOptions(c.user(), filename)
	opts.CreateMissingCategories = !flags.NoNewCategories
	opts.SkipDuplicates = !flags.KeepDuplicates
	if gcs.IsURI(source) {
		opts.ArchiveURI = source
	}
	if flags.Format != "" {
		f, ok := statement.ParseFormat(flags.Format)
		if !ok {
			return fmt.Errorf("unknown format %q", flags.Format)
		}
		opts.Format = f
	}

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Importing %s", filename))
	result, err := c.app.Importer.Import(ctx, data, opts)
	if err != nil {
		spinner.Fail("Import failed")
		var storeErr *importer.StoreError
		if errors.As(err, &storeErr) {
			return storeErr
		}
		return err
	}
	spinner.Success(fmt.Sprintf("Imported %s", filename))

	return renderResult(result, flags.ShowTransactions)
}

func (c *cli) newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Archive a statement in the GCS bucket without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.app.Archiver == nil {
				return errors.New("gcs.bucket is not configured")
			}
			uri, err := c.app.Archiver.UploadFile(c.ctx(cmd), c.user(), args[0])
			if err != nil {
				return err
			}
			pterm.Success.Printf("Uploaded to %s\n", uri)
			pterm.Info.Printf("Import it later with: importer import %s\n", uri)
			return nil
		},
	}

	cmd.Flags().String("bucket", "", "GCS bucket (overrides gcs.bucket)")
	c.bind(cmd, false, "gcs.bucket", "bucket")

	return cmd
}
