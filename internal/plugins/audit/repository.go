package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// insertChunkSize caps rows per INSERT statement. Five placeholders per row
// keeps each statement well below the server's placeholder limit.
const insertChunkSize = 500

// Repository defines the data access contract for the login audit trail.
type Repository interface {
	// BulkInsert writes all events in one transaction, preserving order.
	BulkInsert(ctx context.Context, events []LoginAuditEvent) error

	// ListRecent returns events newest first, optionally filtered by email,
	// plus the total count matching the filter.
	ListRecent(ctx context.Context, email string, limit, offset int) ([]LoginAuditEvent, int, error)
}

// auditRepository implements Repository with MariaDB queries.
type auditRepository struct {
	db *sql.DB
}

// NewRepository creates a new audit repository backed by the given DB pool.
func NewRepository(db *sql.DB) Repository {
	return &auditRepository{db: db}
}

// BulkInsert writes the events as multi-row INSERTs inside one transaction
// so a batch lands entirely or not at all.
func (r *auditRepository) BulkInsert(ctx context.Context, events []LoginAuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning audit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(events); start += insertChunkSize {
		end := min(start+insertChunkSize, len(events))
		query, args := buildInsert(events[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting login audit rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing audit transaction: %w", err)
	}
	return nil
}

// ListRecent returns a page of audit events, newest first.
func (r *auditRepository) ListRecent(ctx context.Context, email string, limit, offset int) ([]LoginAuditEvent, int, error) {
	where := ""
	var filter []any
	if email != "" {
		where = " WHERE email = ?"
		filter = append(filter, email)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM login_audit`+where, filter...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting login audit rows: %w", err)
	}

	query := `SELECT id, occurred_at, ip, email, success, fail_reason
	          FROM login_audit` + where + `
	          ORDER BY occurred_at DESC, id DESC
	          LIMIT ? OFFSET ?`
	args := append(filter, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing login audit rows: %w", err)
	}
	defer rows.Close()

	var events []LoginAuditEvent
	for rows.Next() {
		var e LoginAuditEvent
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.Time, &e.IP, &e.Email, &e.Success, &reason); err != nil {
			return nil, 0, fmt.Errorf("scanning login audit row: %w", err)
		}
		if reason.Valid {
			e.FailReason = &reason.String
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating login audit rows: %w", err)
	}

	return events, total, nil
}

// buildInsert renders one multi-row INSERT for the given events.
func buildInsert(events []LoginAuditEvent) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO login_audit (occurred_at, ip, email, success, fail_reason) VALUES `)

	args := make([]any, 0, len(events)*5)
	for i, e := range events {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")

		var reason sql.NullString
		if e.FailReason != nil {
			reason = sql.NullString{String: *e.FailReason, Valid: true}
		}
		args = append(args, e.Time.UTC(), e.IP, e.Email, e.Success, reason)
	}

	return b.String(), args
}
