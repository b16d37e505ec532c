package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/ledger/internal/analytics"
	"github.com/wcharczuk/go-chart/v2"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to chart")

const (
	chartWidth  = 800
	chartHeight = 400
)

// MonthlyChart renders a bar per month of total expenses as PNG.
func MonthlyChart(w io.Writer, months []analytics.MonthlySummary) error {
	bars := make([]chart.Value, 0, len(months))
	for _, m := range months {
		bars = append(bars, chart.Value{
			Label: m.Month,
			Value: m.Expense.Abs().InexactFloat64(),
		})
	}
	return renderBars(w, "Expenses by Month", bars)
}

// TagsChart renders a bar per label as PNG.
func TagsChart(w io.Writer, tags []analytics.TagSummary) error {
	bars := make([]chart.Value, 0, len(tags))
	for _, t := range tags {
		bars = append(bars, chart.Value{
			Label: t.Label,
			Value: t.Amount.Abs().InexactFloat64(),
		})
	}
	return renderBars(w, "Amount by Tag", bars)
}

func renderBars(w io.Writer, title string, bars []chart.Value) error {
	nonZero := false
	for _, b := range bars {
		if b.Value != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		return ErrNoData
	}

	barChart := chart.BarChart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  chartWidth,
		Height: chartHeight,
		Bars:   bars,
	}
	barChart.YAxis.ValueFormatter = func(v interface{}) string {
		if vf, isFloat := v.(float64); isFloat {
			return fmt.Sprintf("%.2f", vf)
		}
		return ""
	}

	if err := barChart.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %q: %w", title, err)
	}
	return nil
}
