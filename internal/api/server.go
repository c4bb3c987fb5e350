// Package api exposes the expense claims service over HTTP with gin.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/yelinaung/expense-claims/internal/auth"
	"gitlab.com/yelinaung/expense-claims/internal/database"
	"gitlab.com/yelinaung/expense-claims/internal/expense"
	"gitlab.com/yelinaung/expense-claims/internal/gemini"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// ExpenseService is the expense lifecycle used by the handlers.
type ExpenseService interface {
	CreateExpense(ctx context.Context, requester models.CurrentUser, in expense.CreateInput) (*models.Expense, error)
	ListExpenses(ctx context.Context, requester models.CurrentUser, in expense.ListInput) (models.Page[models.Expense], error)
	ListAllExpenses(ctx context.Context, requester models.CurrentUser, in expense.ListInput) ([]models.Expense, error)
	UpdateStatus(ctx context.Context, requester models.CurrentUser, expenseID string, status models.ExpenseStatus) (*models.Expense, error)
}

// AuthService registers users and resolves session tokens.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (models.CurrentUser, error)
}

// AuditLog lists recorded audit entries.
type AuditLog interface {
	List(ctx context.Context, filter models.AuditFilter, page, pageSize int) (models.Page[models.AuditLogEntry], error)
}

// Analytics summarizes approved spend.
type Analytics interface {
	CategoryTotals(ctx context.Context) ([]models.CategoryTotal, error)
	MonthlyTrends(ctx context.Context) ([]models.MonthlyTrend, error)
}

// CategorySuggester proposes a category from free-text notes.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, notes string) (*gemini.CategorySuggestion, error)
}

// ChatLinker links a user to a Telegram chat for notifications.
type ChatLinker interface {
	SetTelegramChatID(ctx context.Context, userID string, chatID *int64) error
}

// LinkCodeRedeemer exchanges a code issued in a Telegram chat for that chat's id.
type LinkCodeRedeemer interface {
	Redeem(code string) (int64, error)
}

// Deps are the collaborators behind the HTTP surface.
// Suggester, Chats and DB are optional.
type Deps struct {
	Expenses  ExpenseService
	Auth      AuthService
	Audit     AuditLog
	Analytics Analytics
	Suggester CategorySuggester
	Chats     ChatLinker
	LinkCodes LinkCodeRedeemer
	DB        database.Pinger
}

// Server holds the handlers.
type Server struct {
	deps Deps
}

// NewRouter builds the gin engine with every route mounted under /api.
func NewRouter(deps Deps) *gin.Engine {
	s := &Server{deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	api := r.Group("/api")
	api.GET("/healthz", s.health)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	user := api.Group("", s.authenticate())
	user.POST("/auth/logout", s.logout)
	user.GET("/auth/me", s.me)
	user.PUT("/auth/me/telegram", s.linkTelegram)
	user.DELETE("/auth/me/telegram", s.unlinkTelegram)

	user.POST("/expenses", s.createExpense)
	user.GET("/expenses", s.listExpenses)
	user.GET("/expenses/export.csv", s.exportExpenses)
	user.POST("/expenses/suggest-category", s.suggestCategory)

	admin := user.Group("", requireAdmin())
	admin.PATCH("/expenses/:id/status", s.updateStatus)
	admin.GET("/expenses/analytics/category", s.categoryTotals)
	admin.GET("/expenses/analytics/category/chart.png", s.categoryChart)
	admin.GET("/expenses/analytics/trends", s.monthlyTrends)
	admin.GET("/audit", s.listAuditLogs)

	return r
}

func (s *Server) health(c *gin.Context) {
	if s.deps.DB != nil {
		if err := s.deps.DB.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
