package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/brightpixel/agency-portal/internal/domain"
	"github.com/brightpixel/agency-portal/internal/service/invoice"
)

const invoiceColumns = `id, number, project_id, client_id, status, currency, line_items,
	subtotal_cents, tax_rate_bps, tax_cents, total_cents, issued_at, due_at, paid_at, notes,
	created_at, updated_at`

// InvoiceRepo implements invoice.Repository against PostgreSQL.
type InvoiceRepo struct{ db *sql.DB }

// NewInvoiceRepo creates a Postgres-backed invoice repository.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := row.Scan(&inv.ID, &inv.Number, &inv.ProjectID, &inv.ClientID, &inv.Status, &inv.Currency,
		jsonColumn[[]domain.LineItem]{&inv.LineItems},
		&inv.SubtotalCents, &inv.TaxRateBps, &inv.TaxCents, &inv.TotalCents,
		&inv.IssuedAt, &inv.DueAt, &inv.PaidAt, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *InvoiceRepo) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invoice.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *InvoiceRepo) List(ctx context.Context, f invoice.ListFilter) ([]domain.Invoice, int, error) {
	var w where
	if f.ClientID != "" {
		w.add("client_id = $%d", f.ClientID)
	}
	if f.ProjectID != "" {
		w.add("project_id = $%d", f.ProjectID)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.ExcludeDrafts {
		w.clauses = append(w.clauses, "status <> 'draft'")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	q, args := w.page(`SELECT `+invoiceColumns+` FROM invoices`+w.String()+` ORDER BY created_at DESC`, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := []domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, inv.ID, inv.Number, inv.ProjectID, inv.ClientID, inv.Status, inv.Currency,
		jsonColumn[[]domain.LineItem]{&inv.LineItems},
		inv.SubtotalCents, inv.TaxRateBps, inv.TaxCents, inv.TotalCents,
		inv.IssuedAt, inv.DueAt, inv.PaidAt, inv.Notes, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// NextSequence increments the per-year counter atomically.
func (r *InvoiceRepo) NextSequence(ctx context.Context, year int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO invoice_sequences (year, last_value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, year).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next invoice sequence: %w", err)
	}
	return n, nil
}

// UpdateStatus is a compare-and-set on status; of two racing transitions
// only the first matches.
func (r *InvoiceRepo) UpdateStatus(ctx context.Context, inv *domain.Invoice, from domain.InvoiceStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET status = $1, issued_at = $2, due_at = $3, paid_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6
	`, inv.Status, inv.IssuedAt, inv.DueAt, inv.PaidAt, inv.ID, from)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return affected(res, invoice.ErrInvalidTransition)
}

func (r *InvoiceRepo) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE invoices SET status = 'overdue', updated_at = NOW()
		WHERE status = 'sent' AND due_at < $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
