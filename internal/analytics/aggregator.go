// Package analytics projects approved expenses into category totals and monthly trends.
package analytics

import (
	"context"
	"fmt"
	"sort"

	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// Source groups approved expenses. Ordering of the returned groups is not relied upon.
type Source interface {
	ApprovedTotalsByCategory(ctx context.Context) ([]models.CategoryTotal, error)
	ApprovedTotalsByMonth(ctx context.Context) ([]models.MonthlyTrend, error)
}

// Aggregator is a read-only view over approved expenses.
// Callers check administrator access.
type Aggregator struct {
	source Source
}

// NewAggregator creates an Aggregator.
func NewAggregator(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// CategoryTotals returns approved spend per category, largest total first.
func (a *Aggregator) CategoryTotals(ctx context.Context) ([]models.CategoryTotal, error) {
	totals, err := a.source.ApprovedTotalsByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category totals: %w", err)
	}
	if totals == nil {
		totals = []models.CategoryTotal{}
	}

	sort.SliceStable(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		return totals[i].Category < totals[j].Category
	})
	return totals, nil
}

// MonthlyTrends returns approved spend per calendar month, oldest first.
func (a *Aggregator) MonthlyTrends(ctx context.Context) ([]models.MonthlyTrend, error) {
	trends, err := a.source.ApprovedTotalsByMonth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate monthly trends: %w", err)
	}
	if trends == nil {
		trends = []models.MonthlyTrend{}
	}

	sort.SliceStable(trends, func(i, j int) bool {
		if trends[i].Year != trends[j].Year {
			return trends[i].Year < trends[j].Year
		}
		return trends[i].Month < trends[j].Month
	})
	return trends, nil
}
