// Package report renders expense listings and analytics for download.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// CSVHeader is the header row of an expense export.
var CSVHeader = []string{"ID", "Date", "Amount", "Category", "Status", "Owner", "Approved By", "Notes", "Created At"}

// ExpensesCSV writes expenses to w as CSV, one row per expense after the header.
func ExpensesCSV(w io.Writer, expenses []models.Expense) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range expenses {
		e := &expenses[i]
		row := []string{
			e.ID,
			e.Date.Format(models.DateLayout),
			e.Amount.StringFixed(2),
			string(e.Category),
			string(e.Status),
			displayName(e.User, e.UserID),
			approverName(e),
			e.Notes,
			e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// ExportFilename names an export generated at now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("expenses_%s.csv", now.Format(models.DateLayout))
}

func approverName(e *models.Expense) string {
	if e.ApprovedBy == nil {
		return ""
	}
	return displayName(e.Approver, *e.ApprovedBy)
}

// displayName prefers the resolved name and falls back to the raw id.
func displayName(u *models.UserSummary, id string) string {
	if u != nil && u.Name != "" {
		return u.Name
	}
	return id
}
