package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"gitlab.com/yelinaung/expense-claims/internal/database"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

const expenseColumns = `id, user_id, amount, category, date, notes, status, approved_by, created_at, updated_at`

// ExpenseRepository handles expense database operations.
type ExpenseRepository struct {
	db database.PGXDB
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.PGXDB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Create inserts a new expense and fills in its generated fields.
func (r *ExpenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	if expense.Status == "" {
		expense.Status = models.ExpenseStatusPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO expenses (user_id, amount, category, date, notes, status, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, expense.UserID, expense.Amount, expense.Category, expense.Date, expense.Notes,
		expense.Status, expense.ApprovedBy,
	).Scan(&expense.ID, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID retrieves an expense by ID.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	if !validUUID(id) {
		return nil, fmt.Errorf("failed to get expense: %w", models.ErrNotFound)
	}

	row := r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id)
	exp, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to get expense: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return exp, nil
}

// Find returns one page of expenses matching the query, newest date first,
// together with the total number of matches.
func (r *ExpenseRepository) Find(ctx context.Context, q models.ExpenseQuery) ([]models.Expense, int, error) {
	if q.Filter.UserID != "" && !validUUID(q.Filter.UserID) {
		return []models.Expense{}, 0, nil
	}

	where, args := expenseWhere(q.Filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count expenses: %w", err)
	}

	pageArgs := append(args, q.Limit, q.Skip)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM expenses%s
		ORDER BY date DESC, created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, expenseColumns, where, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *exp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, total, nil
}

// Save persists the mutable fields of an existing expense.
func (r *ExpenseRepository) Save(ctx context.Context, expense *models.Expense) error {
	if !validUUID(expense.ID) {
		return fmt.Errorf("failed to save expense: %w", models.ErrNotFound)
	}

	err := r.db.QueryRow(ctx, `
		UPDATE expenses SET
			amount = $2,
			category = $3,
			date = $4,
			notes = $5,
			status = $6,
			approved_by = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, expense.ID, expense.Amount, expense.Category, expense.Date, expense.Notes,
		expense.Status, expense.ApprovedBy,
	).Scan(&expense.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to save expense: %w", models.ErrNotFound)
		}
		return fmt.Errorf("failed to save expense: %w", err)
	}
	return nil
}

// ApprovedTotalsByCategory sums approved expenses per category.
func (r *ExpenseRepository) ApprovedTotalsByCategory(ctx context.Context) ([]models.CategoryTotal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT category, COALESCE(SUM(amount), 0), COUNT(*)
		FROM expenses
		WHERE status = $1
		GROUP BY category
		ORDER BY SUM(amount) DESC, category
	`, models.ExpenseStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query category totals: %w", err)
	}
	defer rows.Close()

	var totals []models.CategoryTotal
	for rows.Next() {
		var ct models.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total, &ct.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category total: %w", err)
		}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category totals: %w", err)
	}
	return totals, nil
}

// ApprovedTotalsByMonth sums approved expenses per calendar month of the expense date.
func (r *ExpenseRepository) ApprovedTotalsByMonth(ctx context.Context) ([]models.MonthlyTrend, error) {
	rows, err := r.db.Query(ctx, `
		SELECT EXTRACT(YEAR FROM date)::int AS year,
		       EXTRACT(MONTH FROM date)::int AS month,
		       COALESCE(SUM(amount), 0),
		       COUNT(*)
		FROM expenses
		WHERE status = $1
		GROUP BY year, month
		ORDER BY year, month
	`, models.ExpenseStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly trends: %w", err)
	}
	defer rows.Close()

	var trends []models.MonthlyTrend
	for rows.Next() {
		var mt models.MonthlyTrend
		if err := rows.Scan(&mt.Year, &mt.Month, &mt.Total, &mt.Count); err != nil {
			return nil, fmt.Errorf("failed to scan monthly trend: %w", err)
		}
		trends = append(trends, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monthly trends: %w", err)
	}
	return trends, nil
}

// expenseWhere builds the WHERE clause and positional arguments for f.
func expenseWhere(f models.ExpenseFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.StartDate != nil {
		add("date >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("date <= $%d", *f.EndDate)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// scanExpense reads one expense row selected with expenseColumns.
func scanExpense(row pgx.Row) (*models.Expense, error) {
	var exp models.Expense
	if err := row.Scan(
		&exp.ID, &exp.UserID, &exp.Amount, &exp.Category, &exp.Date, &exp.Notes,
		&exp.Status, &exp.ApprovedBy, &exp.CreatedAt, &exp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &exp, nil
}
