package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/yelinaung/expense-claims/internal/models"
	"gitlab.com/yelinaung/expense-claims/internal/report"
)

func (s *Server) categoryTotals(c *gin.Context) {
	totals, err := s.deps.Analytics.CategoryTotals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (s *Server) monthlyTrends(c *gin.Context) {
	trends, err := s.deps.Analytics.MonthlyTrends(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trends)
}

func (s *Server) categoryChart(c *gin.Context) {
	totals, err := s.deps.Analytics.CategoryTotals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	png, err := report.CategoryChart(totals)
	if err != nil {
		if errors.Is(err, report.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) listAuditLogs(c *gin.Context) {
	page, err := intQuery(c, "page")
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	filter := models.AuditFilter{
		Action: models.AuditAction(c.Query("action")),
		UserID: c.Query("userId"),
	}
	result, err := s.deps.Audit.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
