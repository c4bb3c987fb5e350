// Package audit records and lists the append-only activity trail.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// DefaultPageSize is the page size used when a listing does not ask for one.
const DefaultPageSize = 20

var (
	// ErrInvalidAction is returned for an action outside the closed set.
	ErrInvalidAction = errors.New("invalid audit action")
	// ErrDetailsMismatch is returned when the payload belongs to a different action.
	ErrDetailsMismatch = errors.New("audit details do not match action")
	// ErrMissingActor is returned when no acting user is given.
	ErrMissingActor = errors.New("audit entry requires an acting user")
)

// Store persists audit entries. Implementations have no update or delete path.
type Store interface {
	Insert(ctx context.Context, entry *models.AuditLogEntry) error
	Find(ctx context.Context, q models.AuditQuery) ([]models.AuditLogEntry, int, error)
}

// UserDirectory resolves user IDs to display identities.
type UserDirectory interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// Recorder appends audit entries and lists them.
type Recorder struct {
	store Store
	users UserDirectory
	now   func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the clock that stamps new entries.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder. users may be nil, in which case listings
// carry no resolved identities.
func NewRecorder(store Store, users UserDirectory, opts ...Option) *Recorder {
	r := &Recorder{store: store, users: users, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends a new entry for action performed by actingUserID.
// The acting user is not checked for existence.
func (r *Recorder) Record(
	ctx context.Context,
	action models.AuditAction,
	actingUserID string,
	details models.AuditDetails,
) (*models.AuditLogEntry, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if details == nil || details.Action() != action {
		return nil, fmt.Errorf("%w: %s", ErrDetailsMismatch, action)
	}
	if actingUserID == "" {
		return nil, ErrMissingActor
	}

	entry := &models.AuditLogEntry{
		UserID:    actingUserID,
		Action:    action,
		Details:   details,
		Timestamp: r.now().UTC(),
	}
	if err := r.store.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", action, err)
	}
	return entry, nil
}

// List returns one page of entries, newest first, with acting users resolved.
func (r *Recorder) List(
	ctx context.Context,
	filter models.AuditFilter,
	page, pageSize int,
) (models.Page[models.AuditLogEntry], error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return models.Page[models.AuditLogEntry]{}, fmt.Errorf("%w: %q", ErrInvalidAction, filter.Action)
	}

	page, pageSize = models.NormalizePage(page, pageSize, DefaultPageSize)
	entries, total, err := r.store.Find(ctx, models.AuditQuery{
		Filter: filter,
		Skip:   (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return models.Page[models.AuditLogEntry]{}, fmt.Errorf("failed to list audit logs: %w", err)
	}

	if err := r.resolveUsers(ctx, entries); err != nil {
		return models.Page[models.AuditLogEntry]{}, err
	}
	return models.NewPage(entries, page, pageSize, total), nil
}

func (r *Recorder) resolveUsers(ctx context.Context, entries []models.AuditLogEntry) error {
	if r.users == nil || len(entries) == 0 {
		return nil
	}

	ids := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}

	users, err := r.users.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to resolve audit users: %w", err)
	}
	index := models.IndexSummaries(users)
	for i := range entries {
		entries[i].User = index[entries[i].UserID]
	}
	return nil
}
