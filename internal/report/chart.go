package report

import (
	"errors"
	"fmt"

	"github.com/go-analyze/charts"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("no approved expenses to chart")

// CategoryChart renders approved totals per category as a PNG pie chart.
func CategoryChart(totals []models.CategoryTotal) ([]byte, error) {
	var values []float64
	var names []string
	for _, ct := range totals {
		if !ct.Total.IsPositive() {
			continue
		}
		names = append(names, string(ct.Category))
		values = append(values, ct.Total.InexactFloat64())
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{
			Text: "Approved Expenses by Category",
		}),
		charts.LegendLabelsOptionFunc(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}
