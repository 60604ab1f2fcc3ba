package main

import (
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/notionsync"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func (c *cli) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		Long: `Create or upgrade the store schema.

SQLite databases are migrated when they are opened, so for the sqlite driver
this only reports the schema version. For BigQuery the embedded migrations
are applied in order and recorded in schema_migrations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.ctx(cmd)

			if c.app.SQLite != nil {
				version, dirty, err := c.app.SQLite.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				if dirty {
					return fmt.Errorf("schema version %d is dirty, fix the database manually", version)
				}
				pterm.Success.Printf("SQLite schema is at version %d (%s)\n", version, c.cfg.Store.SQLitePath)
				return nil
			}

			results, err := c.app.BigQuery.Migrator(appliedBy()).Up(ctx)
			if err != nil {
				return err
			}
			if err := pterm.DefaultTable.WithHasHeader().WithData(migrationTable(results)).Render(); err != nil {
				return err
			}
			pterm.Success.Printf("Dataset %s.%s is up to date\n", c.cfg.BigQuery.ProjectID, c.cfg.BigQuery.Dataset)
			return nil
		},
	}
}

func appliedBy() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "importer"
}

func (c *cli) newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cats"},
		Short:   "List the user's categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := c.app.Categories.List(c.ctx(cmd), c.user())
			if err != nil {
				return err
			}
			if len(categories) == 0 {
				pterm.Info.Println("No categories yet. They are created on import.")
				return nil
			}
			return pterm.DefaultTable.WithHasHeader().WithData(categoryTable(categories)).Render()
		},
	}
}

type rangeFlags struct {
	Start string
	End   string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Start, "start", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.End, "end", "", "last date to include (YYYY-MM-DD)")
}

// parseDateRange parses optional YYYY-MM-DD bounds. Zero times mean open
// bounds.
func parseDateRange(start, end string) (time.Time, time.Time, error) {
	var bounds [2]time.Time
	for i, raw := range []string{start, end} {
		if raw == "" {
			continue
		}
		d, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
		}
		bounds[i] = d
	}
	if !bounds[0].IsZero() && !bounds[1].IsZero() && bounds[1].Before(bounds[0]) {
		return time.Time{}, time.Time{}, errors.New("end date is before start date")
	}
	return bounds[0], bounds[1], nil
}

func (c *cli) newTransactionsCmd() *cobra.Command {
	flags := &rangeFlags{}

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txs"},
		Short:   "List imported withdrawals, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseDateRange(flags.Start, flags.End)
			if err != nil {
				return err
			}
			txs, err := c.app.Transactions.ListTransactions(c.ctx(cmd), c.user(), start, end)
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				pterm.Info.Println("No transactions found")
				return nil
			}
			return pterm.DefaultTable.WithHasHeader().WithData(transactionTable(txs)).Render()
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) newExportNotionCmd() *cobra.Command {
	flags := &rangeFlags{}
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "export-notion",
		Short: "Create a Notion page for every imported withdrawal",
		Long: `Create a Notion page for every imported withdrawal in the date range.

Transactions that already have a page (matched by the Transaction ID
property) are skipped, so the command can be re-run safely.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Notion.Token == "" || c.cfg.Notion.DatabaseID == "" {
				return errors.New("notion.token and notion.database_id are required")
			}
			start, end, err := parseDateRange(flags.Start, flags.End)
			if err != nil {
				return err
			}

			exporter := notionsync.NewExporter(
				c.app.Transactions,
				notionsync.NewNotionClient(c.cfg.Notion.Token),
				c.cfg.Notion.DatabaseID,
			)
			summary, err := exporter.Export(c.ctx(cmd), c.user(), start, end, dryRun)
			if err != nil {
				return err
			}

			if err := pterm.DefaultTable.WithData(exportTable(summary)).Render(); err != nil {
				return err
			}
			if dryRun {
				pterm.Info.Println("Dry run: nothing was written to Notion")
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d pages could not be created", summary.Failed)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count what would be created without writing")
	cmd.Flags().String("token", "", "Notion integration token (overrides notion.token)")
	cmd.Flags().String("database", "", "Notion database ID (overrides notion.database_id)")
	c.bind(cmd, false, "notion.token", "token")
	c.bind(cmd, false, "notion.database_id", "database")

	return cmd
}
