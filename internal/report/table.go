// Package report renders analytics as text tables and PNG charts.
package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/dvloznov/ledger/internal/analytics"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/olekukonko/tablewriter"
)

const dateLayout = "2006-01-02 15:04"

// MonthlyTable writes one row per month plus a totals footer.
func MonthlyTable(w io.Writer, months []analytics.MonthlySummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Month", "Income", "Expense", "Net", "Count"})

	var total analytics.Totals
	for _, m := range months {
		table.Append([]string{
			m.Month,
			m.Income.StringFixed(2),
			m.Expense.StringFixed(2),
			m.Net.StringFixed(2),
			strconv.Itoa(m.Count),
		})
		total.Income = total.Income.Add(m.Income)
		total.Expense = total.Expense.Add(m.Expense)
		total.Count += m.Count
	}
	total.Net = total.Income.Sub(total.Expense)

	table.SetFooter([]string{
		"Total",
		total.Income.StringFixed(2),
		total.Expense.StringFixed(2),
		total.Net.StringFixed(2),
		strconv.Itoa(total.Count),
	})
	table.Render()
}

// TagsTable writes one row per label.
func TagsTable(w io.Writer, tags []analytics.TagSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Tag", "Amount", "Count"})
	for _, t := range tags {
		table.Append([]string{t.Label, t.Amount.StringFixed(2), strconv.Itoa(t.Count)})
	}
	table.Render()
}

// TotalsTable writes the income, expense, and net totals.
func TotalsTable(w io.Writer, t analytics.Totals) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Income", "Expense", "Net", "Count"})
	table.Append([]string{
		t.Income.StringFixed(2),
		t.Expense.StringFixed(2),
		t.Net.StringFixed(2),
		strconv.Itoa(t.Count),
	})
	table.Render()
}

// RecordsTable lists records in the order given.
func RecordsTable(w io.Writer, records []ledger.Record) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Date", "Kind", "Amount", "Description", "Tags"})
	table.SetAutoWrapText(false)
	for _, r := range records {
		tags := strings.Join(r.Tags, ", ")
		if r.Recurring {
			tags += " (recurring)"
		}
		table.Append([]string{
			r.ID,
			r.Timestamp.Format(dateLayout),
			string(r.Kind),
			r.Amount.StringFixed(2),
			r.Description,
			strings.TrimSpace(tags),
		})
	}
	table.Render()
}
