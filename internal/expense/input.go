package expense

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// maxAmount is the first value that no longer fits NUMERIC(12,2).
var maxAmount = decimal.New(1, 10)

// CreateInput carries the fields of a new expense as submitted.
type CreateInput struct {
	Amount   *decimal.Decimal
	Category string
	Date     string
	Notes    string
}

// ListInput carries listing filters and paging as submitted.
// UserID is honoured for administrators only.
type ListInput struct {
	UserID    string
	Status    string
	Category  string
	StartDate string
	EndDate   string
	Page      int
	PageSize  int
}

// ParseDate accepts YYYY-MM-DD or RFC 3339 and returns midnight UTC of that calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(models.DateLayout, s); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}

// validate checks every field before anything is written and returns the
// normalized expense.
func (in CreateInput) validate() (*models.Expense, error) {
	if in.Amount == nil || in.Amount.IsNegative() {
		return nil, invalid("amount", ErrInvalidAmount)
	}
	amount := in.Amount.Round(2)
	if amount.GreaterThanOrEqual(maxAmount) {
		return nil, invalid("amount", ErrInvalidAmount)
	}

	category := models.Category(in.Category)
	if !category.Valid() {
		return nil, invalid("category", ErrInvalidCategory)
	}

	// PostgreSQL TEXT cannot store NUL or invalid UTF-8.
	if !utf8.ValidString(in.Notes) || strings.ContainsRune(in.Notes, 0) {
		return nil, invalid("notes", ErrInvalidNotes)
	}
	if utf8.RuneCountInString(in.Notes) > models.MaxNotesLength {
		return nil, invalid("notes", ErrNotesTooLong)
	}

	date, err := ParseDate(in.Date)
	if err != nil {
		return nil, invalid("date", err)
	}

	return &models.Expense{
		Amount:   amount,
		Category: category,
		Date:     date,
		Notes:    in.Notes,
		Status:   models.ExpenseStatusPending,
	}, nil
}

// filter validates the listing filters. The owner filter is decided by the caller.
func (in ListInput) filter() (models.ExpenseFilter, error) {
	var f models.ExpenseFilter

	if in.Status != "" {
		f.Status = models.ExpenseStatus(in.Status)
		if !f.Status.Valid() {
			return f, invalid("status", ErrInvalidStatus)
		}
	}
	if in.Category != "" {
		f.Category = models.Category(in.Category)
		if !f.Category.Valid() {
			return f, invalid("category", ErrInvalidCategory)
		}
	}
	if in.StartDate != "" {
		d, err := ParseDate(in.StartDate)
		if err != nil {
			return f, invalid("startDate", err)
		}
		f.StartDate = &d
	}
	if in.EndDate != "" {
		d, err := ParseDate(in.EndDate)
		if err != nil {
			return f, invalid("endDate", err)
		}
		f.EndDate = &d
	}
	return f, nil
}
