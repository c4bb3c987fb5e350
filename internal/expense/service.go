// Package expense implements the expense claim lifecycle: creation,
// listing and administrator review, each mutation followed by an audit record.
package expense

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/expense-claims/internal/logger"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// DefaultPageSize is the page size used when a listing does not ask for one.
const DefaultPageSize = 10

// Store persists expenses.
type Store interface {
	Create(ctx context.Context, expense *models.Expense) error
	GetByID(ctx context.Context, id string) (*models.Expense, error)
	Find(ctx context.Context, q models.ExpenseQuery) ([]models.Expense, int, error)
	Save(ctx context.Context, expense *models.Expense) error
}

// Recorder appends audit entries.
type Recorder interface {
	Record(ctx context.Context, action models.AuditAction, actingUserID string, details models.AuditDetails) (*models.AuditLogEntry, error)
}

// UserDirectory resolves user IDs for display and notification.
type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// Notifier tells an expense owner about a review decision.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, owner *models.User, expense *models.Expense) error
}

// Service enforces the expense lifecycle.
type Service struct {
	store    Store
	recorder Recorder
	users    UserDirectory
	notifier Notifier
	metrics  *metrics
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sends review decisions to expense owners.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// NewService creates a Service.
func NewService(store Store, recorder Recorder, users UserDirectory, opts ...Option) *Service {
	s := &Service{
		store:    store,
		recorder: recorder,
		users:    users,
		metrics:  newMetrics(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateExpense validates in and stores a pending expense owned by requester.
func (s *Service) CreateExpense(ctx context.Context, requester models.CurrentUser, in CreateInput) (*models.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "expense.CreateExpense")
	defer span.End()

	exp, err := in.validate()
	if err != nil {
		return nil, err
	}
	exp.UserID = requester.ID

	if err := s.store.Create(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	span.SetAttributes(attribute.String("expense.id", exp.ID))
	s.metrics.expenseCreated(ctx, exp.Category)

	logger.Log.Info().
		Str("expense_id", exp.ID).
		Str("user", logger.HashUserID(requester.ID)).
		Str("category", string(exp.Category)).
		Str("notes", logger.SanitizeNotes(exp.Notes)).
		Msg("Expense created")

	s.audit(ctx, requester.ID, models.ExpenseCreatedDetails{
		ExpenseID: exp.ID,
		Amount:    exp.Amount,
		Category:  exp.Category,
		Date:      exp.Date,
	})

	exp.User = requester.Summary()
	return exp, nil
}

// ListExpenses returns one page of expenses visible to requester, newest date first.
// Non-administrators only ever see their own expenses.
func (s *Service) ListExpenses(ctx context.Context, requester models.CurrentUser, in ListInput) (models.Page[models.Expense], error) {
	ctx, span := s.tracer.Start(ctx, "expense.ListExpenses")
	defer span.End()

	filter, err := in.filter()
	if err != nil {
		return models.Page[models.Expense]{}, err
	}
	filter.UserID = in.UserID
	if !requester.IsAdmin() {
		filter.UserID = requester.ID
	}

	page, pageSize := models.NormalizePage(in.Page, in.PageSize, DefaultPageSize)
	items, total, err := s.store.Find(ctx, models.ExpenseQuery{
		Filter: filter,
		Skip:   (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return models.Page[models.Expense]{}, fmt.Errorf("failed to list expenses: %w", err)
	}

	if _, err := s.resolve(ctx, items); err != nil {
		return models.Page[models.Expense]{}, err
	}
	return models.NewPage(items, page, pageSize, total), nil
}

// ListAllExpenses returns every expense visible to requester that matches in,
// ignoring in's paging.
func (s *Service) ListAllExpenses(ctx context.Context, requester models.CurrentUser, in ListInput) ([]models.Expense, error) {
	var all []models.Expense
	in.PageSize = models.MaxPageSize
	for in.Page = 1; ; in.Page++ {
		page, err := s.ListExpenses(ctx, requester, in)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		if in.Page >= page.TotalPages {
			return all, nil
		}
	}
}

// UpdateStatus moves a pending expense to approved or rejected on behalf of an administrator.
func (s *Service) UpdateStatus(
	ctx context.Context,
	requester models.CurrentUser,
	expenseID string,
	status models.ExpenseStatus,
) (*models.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "expense.UpdateStatus",
		trace.WithAttributes(attribute.String("expense.id", expenseID)))
	defer span.End()

	if !requester.IsAdmin() {
		return nil, ErrForbidden
	}
	if status != models.ExpenseStatusApproved && status != models.ExpenseStatusRejected {
		return nil, invalid("status", ErrInvalidStatus)
	}

	exp, err := s.store.GetByID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense %s: %w", expenseID, err)
	}
	if exp.Status.Terminal() {
		return nil, &TransitionError{From: exp.Status, To: status}
	}

	oldStatus := exp.Status
	approver := requester.ID
	exp.Status = status
	exp.ApprovedBy = &approver

	if err := s.store.Save(ctx, exp); err != nil {
		return nil, fmt.Errorf("failed to save expense %s: %w", expenseID, err)
	}
	s.metrics.expenseStatusChanged(ctx, status)

	logger.Log.Info().
		Str("expense_id", exp.ID).
		Str("admin", logger.HashUserID(requester.ID)).
		Str("old_status", string(oldStatus)).
		Str("new_status", string(status)).
		Msg("Expense status changed")

	s.audit(ctx, requester.ID, models.ExpenseStatusChangedDetails{
		ExpenseID: exp.ID,
		OldStatus: oldStatus,
		NewStatus: status,
	})

	owners, err := s.resolve(ctx, []models.Expense{*exp})
	if err != nil {
		logger.Log.Warn().Err(err).Str("expense_id", exp.ID).Msg("Failed to resolve expense users")
	}
	owner := owners[exp.UserID]
	if owner != nil {
		exp.User = owner.Summary()
	}
	exp.Approver = requester.Summary()

	s.notify(ctx, owner, exp)
	return exp, nil
}

// audit records details after a successful mutation. A failure is logged
// and counted but never fails the operation.
func (s *Service) audit(ctx context.Context, actingUserID string, details models.AuditDetails) {
	if _, err := s.recorder.Record(ctx, details.Action(), actingUserID, details); err != nil {
		s.metrics.auditFailed(ctx, details.Action())
		logger.Log.Error().
			Err(err).
			Str("action", string(details.Action())).
			Str("user", logger.HashUserID(actingUserID)).
			Msg("Failed to record audit entry")
	}
}

func (s *Service) notify(ctx context.Context, owner *models.User, exp *models.Expense) {
	if s.notifier == nil || owner == nil {
		return
	}
	if err := s.notifier.NotifyStatusChanged(ctx, owner, exp); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("expense_id", exp.ID).
			Str("user", logger.HashUserID(owner.ID)).
			Msg("Failed to send status notification")
	}
}

// resolve fills in owner and approver identities with one user lookup and
// returns the users it found, keyed by ID.
func (s *Service) resolve(ctx context.Context, items []models.Expense) (map[string]*models.User, error) {
	found := map[string]*models.User{}
	if s.users == nil || len(items) == 0 {
		return found, nil
	}

	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range items {
		add(e.UserID)
		if e.ApprovedBy != nil {
			add(*e.ApprovedBy)
		}
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return found, fmt.Errorf("failed to resolve expense users: %w", err)
	}
	for i := range users {
		found[users[i].ID] = &users[i]
	}

	for i := range items {
		if u := found[items[i].UserID]; u != nil {
			items[i].User = u.Summary()
		}
		if items[i].ApprovedBy != nil {
			if u := found[*items[i].ApprovedBy]; u != nil {
				items[i].Approver = u.Summary()
			}
		}
	}
	return found, nil
}
