package invoice

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
)

const invoiceColumns = `id, invoice_number, appointment_id, patient_name, patient_email,
	consultation_fee, total_amount, issued_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

func (r *repoPG) CreateIfAbsent(ctx context.Context, inv *Invoice) (bool, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoice (id, invoice_number, appointment_id, patient_name, patient_email,
			consultation_fee, total_amount, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (appointment_id) DO NOTHING
		RETURNING issued_at`,
		inv.ID, inv.InvoiceNumber, inv.AppointmentID, inv.PatientName, inv.PatientEmail,
		inv.ConsultationFee, inv.TotalAmount, inv.IssuedAt,
	).Scan(&inv.IssuedAt)
	if db.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Persistence("create invoice", err)
	}
	return true, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoice WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("invoice", id.String())
	}
	if err != nil {
		return nil, apperr.Persistence("get invoice", err)
	}
	return inv, nil
}

func (r *repoPG) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoice WHERE appointment_id = $1`, appointmentID))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("invoice", "for appointment "+appointmentID.String())
	}
	if err != nil {
		return nil, apperr.Persistence("get invoice", err)
	}
	return inv, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	where := ` WHERE 1=1`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(clause, len(args))
	}
	if f.PatientEmail != "" {
		add(` AND patient_email = $%d`, f.PatientEmail)
	}
	if f.IssuedFrom != nil {
		add(` AND issued_at >= $%d`, *f.IssuedFrom)
	}
	if f.IssuedTo != nil {
		add(` AND issued_at < $%d`, *f.IssuedTo)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoice`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count invoices", err)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoice` + where +
		fmt.Sprintf(` ORDER BY issued_at DESC, invoice_number LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, apperr.Persistence("list invoices", err)
	}
	defer rows.Close()

	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, apperr.Persistence("scan invoice", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Persistence("list invoices", err)
	}
	return out, total, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.AppointmentID, &inv.PatientName, &inv.PatientEmail,
		&inv.ConsultationFee, &inv.TotalAmount, &inv.IssuedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
