// Package models defines the domain entities for the expense claims service.
package models

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Store errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// MaxNotesLength is the maximum number of characters allowed in expense notes.
const MaxNotesLength = 500

// DateLayout is the calendar date format used for expense dates.
const DateLayout = "2006-01-02"

// Role is a user's authorization role.
type Role string

// Supported roles.
const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// User represents an account that can submit or review expenses.
type User struct {
	ID             string
	Name           string
	Email          string
	Role           Role
	PasswordHash   string
	TelegramChatID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Summary returns the display identity of the user.
func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// IndexSummaries maps each user's ID to its display identity.
func IndexSummaries(users []User) map[string]*UserSummary {
	index := make(map[string]*UserSummary, len(users))
	for i := range users {
		index[users[i].ID] = users[i].Summary()
	}
	return index
}

// UserSummary is the display identity attached to expenses and audit entries.
type UserSummary struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CurrentUser is the authenticated caller of an operation.
type CurrentUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the caller holds the administrator role.
func (c CurrentUser) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Summary returns the display identity of the caller.
func (c CurrentUser) Summary() *UserSummary {
	return &UserSummary{ID: c.ID, Name: c.Name, Email: c.Email}
}

// Category is one of the fixed expense categories.
type Category string

// Expense categories.
const (
	CategoryTravel         Category = "Travel"
	CategoryFood           Category = "Food"
	CategoryOfficeSupplies Category = "Office Supplies"
	CategorySoftware       Category = "Software"
	CategoryEquipment      Category = "Equipment"
	CategoryTraining       Category = "Training"
	CategoryOther          Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryTravel,
	CategoryFood,
	CategoryOfficeSupplies,
	CategorySoftware,
	CategoryEquipment,
	CategoryTraining,
	CategoryOther,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// CategoryNames returns the category names as plain strings.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// ExpenseStatus is the review state of an expense.
type ExpenseStatus string

// Expense statuses.
const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpenseStatusPending, ExpenseStatusApproved, ExpenseStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s ExpenseStatus) Terminal() bool {
	return s == ExpenseStatusApproved || s == ExpenseStatusRejected
}

// Expense represents a single claimed reimbursable cost.
type Expense struct {
	ID         string          `json:"_id"`
	UserID     string          `json:"userId"`
	User       *UserSummary    `json:"user,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Category   Category        `json:"category"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes,omitempty"`
	Status     ExpenseStatus   `json:"status"`
	ApprovedBy *string         `json:"approvedBy,omitempty"`
	Approver   *UserSummary    `json:"approver,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// ExpenseFilter narrows an expense query. Zero values mean "no filter".
type ExpenseFilter struct {
	UserID    string
	Status    ExpenseStatus
	Category  Category
	StartDate *time.Time
	EndDate   *time.Time
}

// Matches reports whether e satisfies the filter. Date bounds are inclusive.
func (f ExpenseFilter) Matches(e *Expense) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.StartDate != nil && e.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.Date.After(*f.EndDate) {
		return false
	}
	return true
}

// ExpenseQuery is a filtered, paginated expense lookup.
// Results are ordered by date descending.
type ExpenseQuery struct {
	Filter ExpenseFilter
	Skip   int
	Limit  int
}

// CategoryTotal is the approved spend for one category.
type CategoryTotal struct {
	Category Category        `json:"_id"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
}

// MonthlyTrend is the approved spend for one calendar month.
type MonthlyTrend struct {
	Year  int             `json:"year"`
	Month int             `json:"month"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"limit"`
	TotalPages int `json:"pages"`
	Total      int `json:"total"`
}

// NewPage builds a page, deriving the page count from total and pageSize.
func NewPage[T any](items []T, page, pageSize, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if pageSize > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: pages,
		Total:      total,
	}
}

// MaxPageSize caps the page size of every paginated listing.
const MaxPageSize = 100

// MaxPage is the highest page number a listing accepts. Beyond it the row
// offset (page-1)*MaxPageSize would overflow int.
const MaxPage = math.MaxInt/MaxPageSize + 1

// NormalizePage clamps a requested page and page size. Pages are 1-based;
// a non-positive size falls back to defaultSize.
func NormalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
