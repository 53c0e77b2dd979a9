package doctor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
)

const doctorColumns = `id, hospital_id, name, email, phone, specialization, qualification,
	consultation_fee, status, created_at, updated_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (
			id, hospital_id, name, email, phone, specialization, qualification,
			consultation_fee, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		d.ID, d.HospitalID, d.Name, d.Email, d.Phone, d.Specialization, d.Qualification,
		db.NullDecimal(d.ConsultationFee), d.Status,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if db.IsUniqueViolation(err, "doctor_email_key") {
		return apperr.Duplicate("doctor", "email", err)
	}
	if err != nil {
		return apperr.Persistence("create doctor", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctor WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor", id.String())
	}
	if err != nil {
		return nil, apperr.Persistence("get doctor", err)
	}
	return d, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Doctor, int, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctor WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM doctor WHERE 1=1`
	var args []any
	idx := 1

	if f.HospitalID != nil {
		clause := fmt.Sprintf(` AND hospital_id = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, *f.HospitalID)
		idx++
	}
	if f.Status != "" {
		clause := fmt.Sprintf(` AND status = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, f.Status)
		idx++
	}
	if f.Specialization != "" {
		clause := fmt.Sprintf(` AND specialization ILIKE $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+f.Specialization+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count doctors", err)
	}

	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Persistence("list doctors", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, apperr.Persistence("scan doctor", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Persistence("list doctors", err)
	}
	return out, total, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctor SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return apperr.Persistence("update doctor status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor", id.String())
	}
	return nil
}

func (r *repoPG) UpdateFee(ctx context.Context, id uuid.UUID, fee *decimal.Decimal) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctor SET consultation_fee = $2, updated_at = NOW() WHERE id = $1`, id, db.NullDecimal(fee))
	if err != nil {
		return apperr.Persistence("update doctor fee", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor", id.String())
	}
	return nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var (
		d   Doctor
		fee decimal.NullDecimal
	)
	err := row.Scan(
		&d.ID, &d.HospitalID, &d.Name, &d.Email, &d.Phone, &d.Specialization, &d.Qualification,
		&fee, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ConsultationFee = db.DecimalPtr(fee)
	return &d, nil
}
