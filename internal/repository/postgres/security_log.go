package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/audit"
)

const securityLogColumns = `id, event_type, severity, user_id, ip_address, user_agent, path, details, created_at`

// SecurityLogRepo implements audit.Repository against PostgreSQL.
type SecurityLogRepo struct{ db *sql.DB }

// NewSecurityLogRepo creates a Postgres-backed security log repository.
func NewSecurityLogRepo(db *sql.DB) *SecurityLogRepo { return &SecurityLogRepo{db: db} }

func (r *SecurityLogRepo) Create(ctx context.Context, ev *domain.SecurityLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_logs (`+securityLogColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, ev.EventType, ev.Severity, ev.UserID, ev.IPAddress, ev.UserAgent, ev.Path,
		jsonColumn[map[string]any]{&ev.Details}, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert security log: %w", err)
	}
	return nil
}

func (r *SecurityLogRepo) List(ctx context.Context, f audit.ListFilter) ([]domain.SecurityLog, int, error) {
	var w where
	if f.EventType != "" {
		w.add("event_type = $%d", f.EventType)
	}
	if f.Severity != "" {
		w.add("severity = $%d", f.Severity)
	}
	if f.UserID != "" {
		w.add("user_id = $%d", f.UserID)
	}
	if f.Since != nil {
		w.add("created_at >= $%d", *f.Since)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM security_logs`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count security logs: %w", err)
	}

	q, args := w.page(`SELECT `+securityLogColumns+` FROM security_logs`+w.String()+` ORDER BY created_at DESC`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list security logs: %w", err)
	}
	defer rows.Close()

	out := []domain.SecurityLog{}
	for rows.Next() {
		var ev domain.SecurityLog
		var userID sql.NullString
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.Severity, &userID, &ev.IPAddress, &ev.UserAgent,
			&ev.Path, jsonColumn[map[string]any]{&ev.Details}, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan security log: %w", err)
		}
		if userID.Valid {
			ev.UserID = &userID.String
		}
		out = append(out, ev)
	}
	return out, total, rows.Err()
}

func (r *SecurityLogRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM security_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge security logs: %w", err)
	}
	return res.RowsAffected()
}
