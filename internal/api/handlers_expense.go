package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-claims/internal/expense"
	"gitlab.com/yelinaung/expense-claims/internal/models"
	"gitlab.com/yelinaung/expense-claims/internal/report"
)

func (s *Server) createExpense(c *gin.Context) {
	var req struct {
		Amount   *decimal.Decimal `json:"amount"`
		Category string           `json:"category"`
		Date     string           `json:"date"`
		Notes    string           `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, _ := currentUser(c)
	exp, err := s.deps.Expenses.CreateExpense(c.Request.Context(), user, expense.CreateInput{
		Amount:   req.Amount,
		Category: req.Category,
		Date:     req.Date,
		Notes:    req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

func (s *Server) listExpenses(c *gin.Context) {
	in, ok := listInput(c)
	if !ok {
		return
	}

	user, _ := currentUser(c)
	page, err := s.deps.Expenses.ListExpenses(c.Request.Context(), user, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// exportExpenses downloads every expense visible to the caller as CSV.
func (s *Server) exportExpenses(c *gin.Context) {
	in, ok := listInput(c)
	if !ok {
		return
	}

	user, _ := currentUser(c)
	expenses, err := s.deps.Expenses.ListAllExpenses(c.Request.Context(), user, in)
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := report.ExpensesCSV(&buf, expenses); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.ExportFilename(time.Now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) updateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, _ := currentUser(c)
	exp, err := s.deps.Expenses.UpdateStatus(c.Request.Context(), user, c.Param("id"), models.ExpenseStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (s *Server) suggestCategory(c *gin.Context) {
	if s.deps.Suggester == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "category suggestions are not configured"})
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	suggestion, err := s.deps.Suggester.SuggestCategory(c.Request.Context(), req.Notes)
	if err != nil {
		status, msg := classify(err)
		if status == http.StatusInternalServerError {
			// Model failures surface as 502.
			status, msg = http.StatusBadGateway, "category suggestion unavailable"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// listInput reads listing filters and paging from the query string.
func listInput(c *gin.Context) (expense.ListInput, bool) {
	page, err := intQuery(c, "page")
	if err != nil {
		badRequest(c, err.Error())
		return expense.ListInput{}, false
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		badRequest(c, err.Error())
		return expense.ListInput{}, false
	}

	return expense.ListInput{
		UserID:    c.Query("userId"),
		Status:    c.Query("status"),
		Category:  c.Query("category"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Page:      page,
		PageSize:  limit,
	}, true
}

var errNotInteger = errors.New("must be an integer")

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %w", name, errNotInteger)
	}
	return n, nil
}
