package auditlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
)

const entryColumns = `id, actor_id, actor_roles, action, entity, entity_id, request_id,
	status_code, ip_address, details, created_at`

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.QuerierFrom(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, e *Entry) error {
	e.ID = uuid.New()
	var details any
	if len(e.Details) > 0 {
		details = []byte(e.Details)
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_log (id, actor_id, actor_roles, action, entity, entity_id, request_id,
			status_code, ip_address, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		e.ID, e.ActorID, e.ActorRoles, e.Action, e.Entity, e.EntityID, e.RequestID,
		e.StatusCode, e.IPAddress, details,
	).Scan(&e.CreatedAt)
	if err != nil {
		return apperr.Persistence("create audit entry", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_log WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM audit_log WHERE 1=1`
	var args []any
	idx := 1

	add := func(clause string, v any) {
		clause = fmt.Sprintf(clause, idx)
		query += clause
		countQuery += clause
		args = append(args, v)
		idx++
	}
	if f.Entity != "" {
		add(` AND entity = $%d`, f.Entity)
	}
	if f.ActorID != "" {
		add(` AND actor_id = $%d`, f.ActorID)
	}
	if f.Action != "" {
		add(` AND action = $%d`, f.Action)
	}
	if f.Since != nil {
		add(` AND created_at >= $%d`, *f.Since)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Persistence("count audit entries", err)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Persistence("list audit entries", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, apperr.Persistence("scan audit entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Persistence("list audit entries", err)
	}
	return out, total, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e       Entry
		details []byte
	)
	err := row.Scan(
		&e.ID, &e.ActorID, &e.ActorRoles, &e.Action, &e.Entity, &e.EntityID, &e.RequestID,
		&e.StatusCode, &e.IPAddress, &details, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Details = details
	return &e, nil
}
