package main

import (
	"fmt"
	"strconv"

	"github.com/dvloznov/statement-importer/internal/domain"
	"github.com/dvloznov/statement-importer/internal/importer"
	"github.com/dvloznov/statement-importer/internal/infra/bigquery"
	"github.com/dvloznov/statement-importer/internal/notionsync"
	"github.com/pterm/pterm"
)

func separator() {
	pterm.Println(pterm.Green("----------------------------------------"))
}

func renderResult(res *importer.Result, showCreated bool) error {
	separator()
	summary := pterm.TableData{
		{pterm.Blue("Created"), strconv.Itoa(res.CreatedCount)},
		{pterm.Blue("Skipped"), strconv.Itoa(res.SkippedCount)},
	}
	if err := pterm.DefaultTable.WithData(summary).Render(); err != nil {
		return err
	}

	if showCreated && len(res.Created) > 0 {
		separator()
		if err := pterm.DefaultTable.WithHasHeader().WithData(transactionTable(res.Created)).Render(); err != nil {
			return err
		}
	}

	if len(res.SkippedReasons) > 0 {
		separator()
		if err := pterm.DefaultTable.WithHasHeader().WithData(skippedTable(res.SkippedReasons)).Render(); err != nil {
			return err
		}
	}
	return nil
}

func transactionTable(txs []domain.Transaction) pterm.TableData {
	data := pterm.TableData{{"Date", "Description", "Amount", "Category"}}
	for _, tx := range txs {
		category := tx.CategoryName
		if category == "" {
			category = "-"
		}
		data = append(data, []string{
			tx.TransactionDate.Format(domain.DateLayout),
			tx.Description,
			tx.Amount.StringFixed(2),
			category,
		})
	}
	return data
}

// skippedTable groups identical reasons, keeping the order in which each
// reason first appeared.
func skippedTable(reasons []string) pterm.TableData {
	counts := make(map[string]int, len(reasons))
	var order []string
	for _, r := range reasons {
		if counts[r] == 0 {
			order = append(order, r)
		}
		counts[r]++
	}

	data := pterm.TableData{{"Skipped because", "Rows"}}
	for _, r := range order {
		data = append(data, []string{r, strconv.Itoa(counts[r])})
	}
	return data
}

func categoryTable(categories []domain.Category) pterm.TableData {
	data := pterm.TableData{{"Name", "Description", "Default %", "Fixed"}}
	for _, c := range categories {
		fixed := "no"
		if c.IsFixed {
			fixed = "yes"
		}
		data = append(data, []string{c.Name, c.Description, c.DefaultPercentage.String(), fixed})
	}
	return data
}

func migrationTable(results []bigquery.MigrationResult) pterm.TableData {
	data := pterm.TableData{{"Version", "Name", "Status"}}
	for _, r := range results {
		status := "already applied"
		if r.Applied {
			status = pterm.Green("applied")
		}
		data = append(data, []string{fmt.Sprintf("%04d", r.Migration.Version), r.Migration.Name, status})
	}
	return data
}

func exportTable(s *notionsync.ExportSummary) pterm.TableData {
	return pterm.TableData{
		{pterm.Blue("Transactions"), strconv.Itoa(s.Total)},
		{pterm.Blue("Created"), strconv.Itoa(s.Created)},
		{pterm.Blue("Already in Notion"), strconv.Itoa(s.Skipped)},
		{pterm.Blue("Failed"), strconv.Itoa(s.Failed)},
	}
}
