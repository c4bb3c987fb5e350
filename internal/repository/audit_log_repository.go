package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gitlab.com/yelinaung/expense-claims/internal/database"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

// AuditLogRepository appends and reads audit log entries.
// The table rejects UPDATE and DELETE, so there is no way to change an entry here.
type AuditLogRepository struct {
	db database.PGXDB
}

// NewAuditLogRepository creates a new AuditLogRepository.
func NewAuditLogRepository(db database.PGXDB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Insert appends entry and fills in its ID.
func (r *AuditLogRepository) Insert(ctx context.Context, entry *models.AuditLogEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (user_id, action, details, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, entry.UserID, entry.Action, details, entry.Timestamp).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Find returns one page of entries matching the query, newest first,
// together with the total number of matches.
func (r *AuditLogRepository) Find(ctx context.Context, q models.AuditQuery) ([]models.AuditLogEntry, int, error) {
	if q.Filter.UserID != "" && !validUUID(q.Filter.UserID) {
		return []models.AuditLogEntry{}, 0, nil
	}

	var conds []string
	var args []any
	if q.Filter.Action != "" {
		args = append(args, q.Filter.Action)
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if q.Filter.UserID != "" {
		args = append(args, q.Filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	pageArgs := append(args, q.Limit, q.Skip)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT id, user_id, action, details, timestamp
		FROM audit_logs%s
		ORDER BY timestamp DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var entry models.AuditLogEntry
		var raw []byte
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &raw, &entry.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.Details, err = models.DecodeAuditDetails(entry.Action, raw)
		if err != nil {
			return nil, 0, fmt.Errorf("audit log %s: %w", entry.ID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return entries, total, nil
}
