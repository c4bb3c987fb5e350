package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AuditAction identifies the kind of state-changing action an audit entry records.
type AuditAction string

// Audit actions.
const (
	ActionUserRegister         AuditAction = "USER_REGISTER"
	ActionUserLogin            AuditAction = "USER_LOGIN"
	ActionExpenseCreated       AuditAction = "EXPENSE_CREATED"
	ActionExpenseStatusChanged AuditAction = "EXPENSE_STATUS_CHANGED"
	ActionExpenseUpdated       AuditAction = "EXPENSE_UPDATED"
	ActionExpenseDeleted       AuditAction = "EXPENSE_DELETED"
)

// AuditActions lists every known action.
var AuditActions = []AuditAction{
	ActionUserRegister,
	ActionUserLogin,
	ActionExpenseCreated,
	ActionExpenseStatusChanged,
	ActionExpenseUpdated,
	ActionExpenseDeleted,
}

// Valid reports whether a is one of the known actions.
func (a AuditAction) Valid() bool {
	for _, known := range AuditActions {
		if a == known {
			return true
		}
	}
	return false
}

// AuditLogEntry is an immutable record of one state-changing action.
type AuditLogEntry struct {
	ID        string       `json:"_id"`
	UserID    string       `json:"userId"`
	User      *UserSummary `json:"user,omitempty"`
	Action    AuditAction  `json:"action"`
	Details   AuditDetails `json:"details"`
	Timestamp time.Time    `json:"timestamp"`
}

// AuditFilter narrows an audit log query. Zero values mean "no filter".
type AuditFilter struct {
	Action AuditAction
	UserID string
}

// Matches reports whether entry satisfies the filter.
func (f AuditFilter) Matches(entry *AuditLogEntry) bool {
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if f.UserID != "" && entry.UserID != f.UserID {
		return false
	}
	return true
}

// AuditQuery is a filtered, paginated audit lookup.
// Results are ordered by timestamp descending.
type AuditQuery struct {
	Filter AuditFilter
	Skip   int
	Limit  int
}

// AuditDetails is the action-specific payload of an audit entry.
// Each action has exactly one payload type; the set is closed.
type AuditDetails interface {
	Action() AuditAction
	auditDetails()
}

// UserRegisteredDetails is the payload of USER_REGISTER.
type UserRegisteredDetails struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// UserLoginDetails is the payload of USER_LOGIN.
type UserLoginDetails struct {
	Email string `json:"email"`
}

// ExpenseCreatedDetails is the payload of EXPENSE_CREATED.
type ExpenseCreatedDetails struct {
	ExpenseID string          `json:"expenseId"`
	Amount    decimal.Decimal `json:"amount"`
	Category  Category        `json:"category"`
	Date      time.Time       `json:"date"`
}

// ExpenseStatusChangedDetails is the payload of EXPENSE_STATUS_CHANGED.
type ExpenseStatusChangedDetails struct {
	ExpenseID string        `json:"expenseId"`
	OldStatus ExpenseStatus `json:"oldStatus"`
	NewStatus ExpenseStatus `json:"newStatus"`
}

// ExpenseUpdatedDetails is the payload of EXPENSE_UPDATED.
// No operation produces it yet.
type ExpenseUpdatedDetails struct {
	ExpenseID string   `json:"expenseId"`
	Fields    []string `json:"fields"`
}

// ExpenseDeletedDetails is the payload of EXPENSE_DELETED.
// No operation produces it yet.
type ExpenseDeletedDetails struct {
	ExpenseID string `json:"expenseId"`
}

func (UserRegisteredDetails) Action() AuditAction       { return ActionUserRegister }
func (UserLoginDetails) Action() AuditAction            { return ActionUserLogin }
func (ExpenseCreatedDetails) Action() AuditAction       { return ActionExpenseCreated }
func (ExpenseStatusChangedDetails) Action() AuditAction { return ActionExpenseStatusChanged }
func (ExpenseUpdatedDetails) Action() AuditAction       { return ActionExpenseUpdated }
func (ExpenseDeletedDetails) Action() AuditAction       { return ActionExpenseDeleted }

func (UserRegisteredDetails) auditDetails()       {}
func (UserLoginDetails) auditDetails()            {}
func (ExpenseCreatedDetails) auditDetails()       {}
func (ExpenseStatusChangedDetails) auditDetails() {}
func (ExpenseUpdatedDetails) auditDetails()       {}
func (ExpenseDeletedDetails) auditDetails()       {}

// DecodeAuditDetails parses a stored payload into the variant for action.
func DecodeAuditDetails(action AuditAction, raw []byte) (AuditDetails, error) {
	var details AuditDetails
	switch action {
	case ActionUserRegister:
		details = &UserRegisteredDetails{}
	case ActionUserLogin:
		details = &UserLoginDetails{}
	case ActionExpenseCreated:
		details = &ExpenseCreatedDetails{}
	case ActionExpenseStatusChanged:
		details = &ExpenseStatusChangedDetails{}
	case ActionExpenseUpdated:
		details = &ExpenseUpdatedDetails{}
	case ActionExpenseDeleted:
		details = &ExpenseDeletedDetails{}
	default:
		return nil, fmt.Errorf("unknown audit action %q", action)
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, details); err != nil {
			return nil, fmt.Errorf("failed to decode %s details: %w", action, err)
		}
	}
	return derefDetails(details), nil
}

// derefDetails returns the value form of a pointer variant so decoded
// entries compare equal to the values callers recorded.
func derefDetails(details AuditDetails) AuditDetails {
	switch d := details.(type) {
	case *UserRegisteredDetails:
		return *d
	case *UserLoginDetails:
		return *d
	case *ExpenseCreatedDetails:
		return *d
	case *ExpenseStatusChangedDetails:
		return *d
	case *ExpenseUpdatedDetails:
		return *d
	case *ExpenseDeletedDetails:
		return *d
	}
	return details
}
