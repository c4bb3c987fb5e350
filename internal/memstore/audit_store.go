package memstore

import (
	"context"
	"sort"
	"sync"

	"gitlab.com/yelinaung/expense-claims/internal/models"
)

type auditRow struct {
	entry models.AuditLogEntry
	seq   int64
}

// AuditLogStore is an append-only in-memory audit log.
type AuditLogStore struct {
	mu   sync.RWMutex
	rows []auditRow
}

// NewAuditLogStore creates an empty AuditLogStore.
func NewAuditLogStore() *AuditLogStore {
	return &AuditLogStore{}
}

// Insert appends entry and fills in its ID.
func (s *AuditLogStore) Insert(_ context.Context, entry *models.AuditLogEntry) error {
	entry.ID = newID()
	stored := *entry
	stored.User = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, auditRow{entry: stored, seq: int64(len(s.rows) + 1)})
	return nil
}

// Find returns one page of matching entries, newest first, and the total match count.
func (s *AuditLogStore) Find(_ context.Context, q models.AuditQuery) ([]models.AuditLogEntry, int, error) {
	s.mu.RLock()
	matched := make([]auditRow, 0, len(s.rows))
	for _, row := range s.rows {
		if q.Filter.Matches(&row.entry) {
			matched = append(matched, row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.entry.Timestamp.Equal(b.entry.Timestamp) {
			return a.entry.Timestamp.After(b.entry.Timestamp)
		}
		return a.seq > b.seq
	})

	start, end := window(len(matched), q.Skip, q.Limit)
	out := make([]models.AuditLogEntry, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, row.entry)
	}
	return out, len(matched), nil
}

// Len returns the number of stored entries.
func (s *AuditLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
