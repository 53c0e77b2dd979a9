package hospital

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
)

const hospitalColumns = `id, name, registration_number, address, phone, email, status, created_at, updated_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, h *Hospital) error {
	h.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO hospital (id, name, registration_number, address, phone, email, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		h.ID, h.Name, h.RegistrationNumber, h.Address, h.Phone, h.Email, h.Status,
	).Scan(&h.CreatedAt, &h.UpdatedAt)
	if db.IsUniqueViolation(err, "hospital_registration_number_key") {
		return apperr.Duplicate("hospital", "registration_number", err)
	}
	if err != nil {
		return apperr.Persistence("create hospital", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	h, err := scanHospital(r.conn(ctx).QueryRow(ctx, `SELECT `+hospitalColumns+` FROM hospital WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("hospital", id.String())
	}
	if err != nil {
		return nil, apperr.Persistence("get hospital", err)
	}
	return h, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Hospital, int, error) {
	query := `SELECT ` + hospitalColumns + ` FROM hospital WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM hospital WHERE 1=1`
	var args []any
	idx := 1

	if f.Status != "" {
		clause := fmt.Sprintf(` AND status = $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, f.Status)
		idx++
	}
	if f.Name != "" {
		clause := fmt.Sprintf(` AND name ILIKE $%d`, idx)
		query += clause
		countQuery += clause
		args = append(args, "%"+f.Name+"%")
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count hospitals", err)
	}

	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Persistence("list hospitals", err)
	}
	defer rows.Close()

	var out []*Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, 0, apperr.Persistence("scan hospital", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Persistence("list hospitals", err)
	}
	return out, total, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE hospital SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return apperr.Persistence("update hospital status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("hospital", id.String())
	}
	return nil
}

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(
		&h.ID, &h.Name, &h.RegistrationNumber, &h.Address, &h.Phone, &h.Email,
		&h.Status, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
