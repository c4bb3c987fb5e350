package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

type expenseRow struct {
	expense models.Expense
	seq     int64
}

// ExpenseStore keeps expenses in memory.
type ExpenseStore struct {
	mu   sync.RWMutex
	rows map[string]*expenseRow
	seq  int64
}

// NewExpenseStore creates an empty ExpenseStore.
func NewExpenseStore() *ExpenseStore {
	return &ExpenseStore{rows: make(map[string]*expenseRow)}
}

// Create stores a copy of expense and fills in its generated fields.
func (s *ExpenseStore) Create(_ context.Context, expense *models.Expense) error {
	if expense.Status == "" {
		expense.Status = models.ExpenseStatusPending
	}
	ts := now()
	expense.ID = newID()
	expense.CreatedAt = ts
	expense.UpdatedAt = ts

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.rows[expense.ID] = &expenseRow{expense: stripExpense(*expense), seq: s.seq}
	return nil
}

// GetByID returns a copy of the stored expense.
func (s *ExpenseStore) GetByID(_ context.Context, id string) (*models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, fmt.Errorf("failed to get expense: %w", models.ErrNotFound)
	}
	exp := copyExpense(row.expense)
	return &exp, nil
}

// Find returns one page of matching expenses, newest date first, and the total match count.
func (s *ExpenseStore) Find(_ context.Context, q models.ExpenseQuery) ([]models.Expense, int, error) {
	s.mu.RLock()
	matched := make([]*expenseRow, 0, len(s.rows))
	for _, row := range s.rows {
		if q.Filter.Matches(&row.expense) {
			matched = append(matched, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.expense.Date.Equal(b.expense.Date) {
			return a.expense.Date.After(b.expense.Date)
		}
		return a.seq > b.seq
	})

	start, end := window(len(matched), q.Skip, q.Limit)
	out := make([]models.Expense, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, copyExpense(row.expense))
	}
	return out, len(matched), nil
}

// Save replaces the stored expense with the same ID.
func (s *ExpenseStore) Save(_ context.Context, expense *models.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[expense.ID]
	if !ok {
		return fmt.Errorf("failed to save expense: %w", models.ErrNotFound)
	}
	expense.CreatedAt = row.expense.CreatedAt
	expense.UpdatedAt = now()
	row.expense = stripExpense(*expense)
	return nil
}

// ApprovedTotalsByCategory sums approved expenses per category.
func (s *ExpenseStore) ApprovedTotalsByCategory(_ context.Context) ([]models.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := map[models.Category]int{}
	var totals []models.CategoryTotal
	for _, row := range s.rows {
		e := row.expense
		if e.Status != models.ExpenseStatusApproved {
			continue
		}
		i, ok := index[e.Category]
		if !ok {
			i = len(totals)
			index[e.Category] = i
			totals = append(totals, models.CategoryTotal{Category: e.Category, Total: decimal.Zero})
		}
		totals[i].Total = totals[i].Total.Add(e.Amount)
		totals[i].Count++
	}
	return totals, nil
}

// ApprovedTotalsByMonth sums approved expenses per calendar month of the expense date.
func (s *ExpenseStore) ApprovedTotalsByMonth(_ context.Context) ([]models.MonthlyTrend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ year, month int }
	index := map[key]int{}
	var trends []models.MonthlyTrend
	for _, row := range s.rows {
		e := row.expense
		if e.Status != models.ExpenseStatusApproved {
			continue
		}
		k := key{e.Date.Year(), int(e.Date.Month())}
		i, ok := index[k]
		if !ok {
			i = len(trends)
			index[k] = i
			trends = append(trends, models.MonthlyTrend{Year: k.year, Month: k.month, Total: decimal.Zero})
		}
		trends[i].Total = trends[i].Total.Add(e.Amount)
		trends[i].Count++
	}
	return trends, nil
}

// stripExpense drops resolved identities, which are never persisted.
func stripExpense(e models.Expense) models.Expense {
	e.User = nil
	e.Approver = nil
	return copyExpense(e)
}

func copyExpense(e models.Expense) models.Expense {
	if e.ApprovedBy != nil {
		id := *e.ApprovedBy
		e.ApprovedBy = &id
	}
	return e
}
