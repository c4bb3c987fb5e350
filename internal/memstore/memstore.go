// Package memstore provides thread-safe in-memory implementations of the
// expense, audit, user and session stores. It backs DATABASE_URL=memory://
// and the service tests.
package memstore

import (
	"time"

	"github.com/google/uuid"
)

// Store bundles the in-memory stores that share one process.
type Store struct {
	Expenses  *ExpenseStore
	AuditLogs *AuditLogStore
	Users     *UserStore
	Sessions  *SessionStore
}

// New creates an empty Store.
func New() *Store {
	users := NewUserStore()
	return &Store{
		Expenses:  NewExpenseStore(),
		AuditLogs: NewAuditLogStore(),
		Users:     users,
		Sessions:  NewSessionStore(users),
	}
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}

// window returns the [skip, skip+limit) slice bounds clamped to n.
func window(n, skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if skip > n {
		skip = n
	}
	end := n
	if limit > 0 && skip+limit < n {
		end = skip + limit
	}
	return skip, end
}
