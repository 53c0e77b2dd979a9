package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
)

const sessionColumns = `id, doctor_id, hospital_id, start_time, end_time, capacity, room, status,
	created_at, updated_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO channeling_session (
			id, doctor_id, hospital_id, start_time, end_time, capacity, room, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		s.ID, s.DoctorID, s.HospitalID, s.StartTime, s.EndTime, s.Capacity, s.Room, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return apperr.Persistence("create session", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM channeling_session WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM channeling_session WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) get(ctx context.Context, query string, id uuid.UUID) (*Session, error) {
	s, err := scanSession(r.conn(ctx).QueryRow(ctx, query, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("session", id.String())
	}
	if err != nil {
		return nil, apperr.Persistence("get session", err)
	}
	return s, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Session, int, error) {
	query := `SELECT ` + sessionColumns + ` FROM channeling_session WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM channeling_session WHERE 1=1`
	var args []any
	idx := 1

	add := func(format string, v any) {
		clause := fmt.Sprintf(format, idx)
		query += clause
		countQuery += clause
		args = append(args, v)
		idx++
	}
	if f.DoctorID != nil {
		add(` AND doctor_id = $%d`, *f.DoctorID)
	}
	if f.HospitalID != nil {
		add(` AND hospital_id = $%d`, *f.HospitalID)
	}
	if f.From != nil {
		add(` AND start_time >= $%d`, *f.From)
	}
	if f.To != nil {
		add(` AND start_time < $%d`, *f.To)
	}
	if f.Status != "" {
		add(` AND status = $%d`, f.Status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count sessions", err)
	}

	query += fmt.Sprintf(` ORDER BY start_time LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Persistence("list sessions", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, apperr.Persistence("scan session", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Persistence("list sessions", err)
	}
	return out, total, nil
}

func (r *repoPG) UpdateCapacity(ctx context.Context, id uuid.UUID, capacity int) error {
	return r.exec(ctx, "update session capacity", id,
		`UPDATE channeling_session SET capacity = $2, updated_at = NOW() WHERE id = $1`, capacity)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	return r.exec(ctx, "update session status", id,
		`UPDATE channeling_session SET status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (r *repoPG) exec(ctx context.Context, op string, id uuid.UUID, sql string, arg any) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, id, arg)
	if err != nil {
		return apperr.Persistence(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("session", id.String())
	}
	return nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(
		&s.ID, &s.DoctorID, &s.HospitalID, &s.StartTime, &s.EndTime, &s.Capacity, &s.Room, &s.Status,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
