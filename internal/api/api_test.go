package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/expense-claims/internal/analytics"
	"gitlab.com/yelinaung/expense-claims/internal/audit"
	"gitlab.com/yelinaung/expense-claims/internal/auth"
	"gitlab.com/yelinaung/expense-claims/internal/expense"
	"gitlab.com/yelinaung/expense-claims/internal/gemini"
	"gitlab.com/yelinaung/expense-claims/internal/memstore"
	"gitlab.com/yelinaung/expense-claims/internal/models"
	"gitlab.com/yelinaung/expense-claims/internal/notify"
	"gitlab.com/yelinaung/expense-claims/internal/report"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router     *gin.Engine
	store      *memstore.Store
	adminToken string
	empToken   string
	admin      *models.User
	employee   *models.User
}

func setupTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()
	ctx := context.Background()

	store := memstore.New()
	recorder := audit.NewRecorder(store.AuditLogs, store.Users)
	authSvc := auth.NewService(store.Users, store.Sessions, recorder, auth.Config{AllowRegistration: true})

	deps := Deps{
		Expenses:  expense.NewService(store.Expenses, recorder, store.Users),
		Auth:      authSvc,
		Audit:     recorder,
		Analytics: analytics.NewAggregator(store.Expenses),
		Chats:     store.Users,
		LinkCodes: notify.NewLinkCodes(),
	}
	for _, m := range mutate {
		m(&deps)
	}

	admin, err := authSvc.CreateUser(ctx, auth.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "password123"}, models.RoleAdmin)
	require.NoError(t, err)
	employee, err := authSvc.CreateUser(ctx, auth.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "password123"}, models.RoleEmployee)
	require.NoError(t, err)

	adminToken, _, err := authSvc.Login(ctx, admin.Email, "password123")
	require.NoError(t, err)
	empToken, _, err := authSvc.Login(ctx, employee.Email, "password123")
	require.NoError(t, err)

	return &testServer{
		router:     NewRouter(deps),
		store:      store,
		adminToken: adminToken,
		empToken:   empToken,
		admin:      admin,
		employee:   employee,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func (ts *testServer) createExpense(t *testing.T, token string, amount, category, date string) models.Expense {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/expenses", token, fmt.Sprintf(
		`{"amount": %s, "category": %q, "date": %q, "notes": "n"}`, amount, category, date))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Expense](t, w)
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Carol", "email": "carol@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotContains(t, w.Body.String(), "password")

	w = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Carol", "email": "carol@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[struct {
		Token string `json:"token"`
	}](t, w).Token
	require.NotEmpty(t, token)

	w = ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[models.CurrentUser](t, w)
	require.Equal(t, "Carol", me.Name)
	require.Equal(t, models.RoleEmployee, me.Role)

	w = ts.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthentication(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"unknown token", "Bearer not-a-session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.NotEmpty(t, errorBody(t, w))
		})
	}
}

func TestExpenseLifecycle(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	exp := ts.createExpense(t, ts.empToken, "250.00", "Software", "2024-03-05")
	require.Equal(t, models.ExpenseStatusPending, exp.Status)
	require.Equal(t, ts.employee.ID, exp.UserID)
	require.Equal(t, "250", exp.Amount.String())

	w := ts.do(t, http.MethodPatch, "/api/expenses/"+exp.ID+"/status", ts.empToken, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/expenses/"+exp.ID+"/status", ts.adminToken, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Expense](t, w)
	require.Equal(t, models.ExpenseStatusApproved, updated.Status)
	require.NotNil(t, updated.ApprovedBy)
	require.Equal(t, ts.admin.ID, *updated.ApprovedBy)
	require.Equal(t, "Bob", updated.User.Name)
	require.Equal(t, "Alice", updated.Approver.Name)

	w = ts.do(t, http.MethodPatch, "/api/expenses/"+exp.ID+"/status", ts.adminToken, map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodGet, "/api/audit?action=EXPENSE_CREATED", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[models.Page[map[string]any]](t, w)
	require.Equal(t, 1, created.Total)
	require.Equal(t, ts.employee.ID, created.Items[0]["userId"])

	w = ts.do(t, http.MethodGet, "/api/audit?action=EXPENSE_STATUS_CHANGED", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	changed := decode[models.Page[map[string]any]](t, w)
	require.Equal(t, 1, changed.Total)
	details := changed.Items[0]["details"].(map[string]any)
	require.Equal(t, "pending", details["oldStatus"])
	require.Equal(t, "approved", details["newStatus"])
}

func TestCreateExpenseErrors(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"missing amount", `{"category": "Food", "date": "2024-03-05"}`, http.StatusBadRequest},
		{"negative amount", `{"amount": -1, "category": "Food", "date": "2024-03-05"}`, http.StatusBadRequest},
		{"unknown category", `{"amount": 5, "category": "Groceries", "date": "2024-03-05"}`, http.StatusBadRequest},
		{"bad date", `{"amount": 5, "category": "Food", "date": "05/03/2024"}`, http.StatusBadRequest},
		{"NUL in notes", `{"amount": 5, "category": "Food", "date": "2024-03-05", "notes": "a\u0000b"}`, http.StatusBadRequest},
		{"string amount", `{"amount": "12.50", "category": "Food", "date": "2024-03-05"}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := ts.do(t, http.MethodPost, "/api/expenses", ts.empToken, tt.body)
			require.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want != http.StatusCreated {
				require.NotEmpty(t, errorBody(t, w))
			}
		})
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)
	exp := ts.createExpense(t, ts.empToken, "10", "Food", "2024-03-05")

	w := ts.do(t, http.MethodPatch, "/api/expenses/"+exp.ID+"/status", ts.adminToken, map[string]string{"status": "pending"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/expenses/missing/status", ts.adminToken, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not found", errorBody(t, w))
}

func TestListExpenses(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	ts.createExpense(t, ts.empToken, "10", "Food", "2024-03-01")
	ts.createExpense(t, ts.empToken, "20", "Travel", "2024-03-02")
	ts.createExpense(t, ts.adminToken, "30", "Travel", "2024-03-03")

	t.Run("employee sees only own expenses", func(t *testing.T) {
		t.Parallel()
		w := ts.do(t, http.MethodGet, "/api/expenses?userId="+ts.admin.ID, ts.empToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[models.Page[models.Expense]](t, w)
		require.Equal(t, 2, page.Total)
		for _, e := range page.Items {
			require.Equal(t, ts.employee.ID, e.UserID)
		}
	})

	t.Run("admin filters and pages", func(t *testing.T) {
		t.Parallel()
		w := ts.do(t, http.MethodGet, "/api/expenses?category=Travel&limit=1&page=2", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[models.Page[models.Expense]](t, w)
		require.Equal(t, 2, page.Total)
		require.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 1)
		require.Equal(t, "2024-03-02", page.Items[0].Date.Format(models.DateLayout))
	})

	t.Run("huge page is clamped", func(t *testing.T) {
		t.Parallel()
		w := ts.do(t, http.MethodGet, "/api/expenses?page=9223372036854775807", ts.adminToken, nil)
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[models.Page[models.Expense]](t, w)
		require.Equal(t, models.MaxPage, page.Page)
		require.Empty(t, page.Items)
	})

	t.Run("invalid filters", func(t *testing.T) {
		t.Parallel()
		for _, q := range []string{"status=cancelled", "category=Groceries", "startDate=yesterday", "page=abc"} {
			w := ts.do(t, http.MethodGet, "/api/expenses?"+q, ts.adminToken, nil)
			require.Equal(t, http.StatusBadRequest, w.Code, q)
		}
	})
}

func TestExportExpenses(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)
	for i := range 12 {
		ts.createExpense(t, ts.empToken, fmt.Sprintf("%d", i+1), "Food", "2024-03-05")
	}

	w := ts.do(t, http.MethodGet, "/api/expenses/export.csv", ts.empToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 13)
	require.Equal(t, report.CSVHeader, records[0])
	require.Equal(t, "Bob", records[1][5])
}

func TestAnalytics(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	approved := ts.createExpense(t, ts.empToken, "100", "Travel", "2024-03-05")
	ts.createExpense(t, ts.empToken, "50", "Travel", "2024-03-06")
	w := ts.do(t, http.MethodPatch, "/api/expenses/"+approved.ID+"/status", ts.adminToken, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/expenses/analytics/category", ts.empToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/expenses/analytics/category", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	totals := decode[[]models.CategoryTotal](t, w)
	require.Len(t, totals, 1)
	require.Equal(t, models.CategoryTravel, totals[0].Category)
	require.Equal(t, "100", totals[0].Total.String())
	require.Equal(t, 1, totals[0].Count)

	w = ts.do(t, http.MethodGet, "/api/expenses/analytics/trends", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	trends := decode[[]models.MonthlyTrend](t, w)
	require.Equal(t, []models.MonthlyTrend{{Year: 2024, Month: 3, Total: totals[0].Total, Count: 1}}, trends)

	w = ts.do(t, http.MethodGet, "/api/expenses/analytics/category/chart.png", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))
}

func TestCategoryChartWithoutData(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/expenses/analytics/category/chart.png", ts.adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAuditLogs(t *testing.T) {
	t.Parallel()
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/audit", ts.empToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/audit?action=EXPENSE_ARCHIVED", ts.adminToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/audit?userId="+ts.employee.ID, ts.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.Page[map[string]any]](t, w)
	// register and login
	require.Equal(t, 2, page.Total)
	require.Equal(t, string(models.ActionUserLogin), page.Items[0]["action"])
	require.Equal(t, "Bob", page.Items[0]["user"].(map[string]any)["name"])
	require.Equal(t, "bob@example.com", page.Items[0]["details"].(map[string]any)["email"])
}

type stubSuggester struct {
	suggestion *gemini.CategorySuggestion
	err        error
}

func (s stubSuggester) SuggestCategory(context.Context, string) (*gemini.CategorySuggestion, error) {
	return s.suggestion, s.err
}

func TestSuggestCategory(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		ts := setupTestServer(t)
		w := ts.do(t, http.MethodPost, "/api/expenses/suggest-category", ts.empToken, map[string]string{"notes": "taxi"})
		require.Equal(t, http.StatusNotImplemented, w.Code)
	})

	tests := []struct {
		name string
		stub stubSuggester
		want int
	}{
		{"suggestion", stubSuggester{suggestion: &gemini.CategorySuggestion{Category: models.CategoryTravel, Confidence: 0.9}}, http.StatusOK},
		{"empty notes", stubSuggester{err: gemini.ErrEmptyNotes}, http.StatusBadRequest},
		{"model failure", stubSuggester{err: errors.New("quota exceeded")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := setupTestServer(t, func(d *Deps) { d.Suggester = tt.stub })
			w := ts.do(t, http.MethodPost, "/api/expenses/suggest-category", ts.empToken, map[string]string{"notes": "taxi"})
			require.Equal(t, tt.want, w.Code, w.Body.String())
			if tt.want == http.StatusOK {
				require.Equal(t, models.CategoryTravel, decode[gemini.CategorySuggestion](t, w).Category)
			}
		})
	}
}

func TestLinkTelegram(t *testing.T) {
	t.Parallel()
	codes := notify.NewLinkCodes()
	ts := setupTestServer(t, func(d *Deps) { d.LinkCodes = codes })
	ctx := context.Background()

	chatOf := func(t *testing.T, id string) *int64 {
		t.Helper()
		user, err := ts.store.Users.GetByID(ctx, id)
		require.NoError(t, err)
		return user.TelegramChatID
	}

	t.Run("links the chat behind a valid code", func(t *testing.T) {
		code, err := codes.Issue(4242)
		require.NoError(t, err)

		w := ts.do(t, http.MethodPut, "/api/auth/me/telegram", ts.empToken, map[string]string{"code": code})
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		require.NotNil(t, chatOf(t, ts.employee.ID))
		require.Equal(t, int64(4242), *chatOf(t, ts.employee.ID))

		// A code is single use.
		w = ts.do(t, http.MethodPut, "/api/auth/me/telegram", ts.adminToken, map[string]string{"code": code})
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Nil(t, chatOf(t, ts.admin.ID))
	})

	t.Run("a raw chat id cannot be linked", func(t *testing.T) {
		w := ts.do(t, http.MethodPut, "/api/auth/me/telegram", ts.adminToken, `{"chatId": 4242}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = ts.do(t, http.MethodPut, "/api/auth/me/telegram", ts.adminToken, `{"code": "NOTACODE"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Equal(t, notify.ErrInvalidLinkCode.Error(), errorBody(t, w))
		require.Nil(t, chatOf(t, ts.admin.ID))
	})

	t.Run("unlinks", func(t *testing.T) {
		w := ts.do(t, http.MethodDelete, "/api/auth/me/telegram", ts.empToken, nil)
		require.Equal(t, http.StatusNoContent, w.Code)
		require.Nil(t, chatOf(t, ts.employee.ID))
	})

	t.Run("not configured", func(t *testing.T) {
		bare := setupTestServer(t, func(d *Deps) { d.Chats = nil; d.LinkCodes = nil })
		w := bare.do(t, http.MethodPut, "/api/auth/me/telegram", bare.empToken, `{"code": "AAAAAAAA"}`)
		require.Equal(t, http.StatusNotImplemented, w.Code)
		w = bare.do(t, http.MethodDelete, "/api/auth/me/telegram", bare.empToken, nil)
		require.Equal(t, http.StatusNotImplemented, w.Code)
	})
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		db   stubPinger
		want int
	}{
		{"healthy", stubPinger{}, http.StatusOK},
		{"database down", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := setupTestServer(t, func(d *Deps) { d.DB = tt.db })
			w := ts.do(t, http.MethodGet, "/api/healthz", "", nil)
			require.Equal(t, tt.want, w.Code)
			require.NotEmpty(t, w.Header().Get(requestIDHeader))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"transition", fmt.Errorf("wrap: %w", &expense.TransitionError{From: models.ExpenseStatusApproved, To: models.ExpenseStatusRejected}), http.StatusConflict},
		{"validation", &expense.ValidationError{Field: "amount", Err: expense.ErrInvalidAmount}, http.StatusBadRequest},
		{"forbidden", expense.ErrForbidden, http.StatusForbidden},
		{"not found", fmt.Errorf("failed to load expense: %w", models.ErrNotFound), http.StatusNotFound},
		{"invalid action", audit.ErrInvalidAction, http.StatusBadRequest},
		{"invalid link code", notify.ErrInvalidLinkCode, http.StatusBadRequest},
		{"unauthenticated", auth.ErrUnauthenticated, http.StatusUnauthorized},
		{"registration disabled", auth.ErrRegistrationDisabled, http.StatusForbidden},
		{"weak password", auth.ErrWeakPassword, http.StatusBadRequest},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, msg := classify(tt.err)
			require.Equal(t, tt.want, status)
			require.NotEmpty(t, msg)
			if status == http.StatusInternalServerError {
				require.Equal(t, "internal server error", msg)
			}
		})
	}
}
