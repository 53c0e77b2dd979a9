package auditlog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is one row of the audit_log table. Entries are append-only.
type Entry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ActorID    string          `db:"actor_id" json:"actor_id"`
	ActorRoles []string        `db:"actor_roles" json:"actor_roles"`
	Action     string          `db:"action" json:"action"`
	Entity     string          `db:"entity" json:"entity"`
	EntityID   *string         `db:"entity_id" json:"entity_id,omitempty"`
	RequestID  *string         `db:"request_id" json:"request_id,omitempty"`
	StatusCode int             `db:"status_code" json:"status_code"`
	IPAddress  *string         `db:"ip_address" json:"ip_address,omitempty"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Actions recorded by the HTTP audit middleware.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type Filter struct {
	Entity  string
	ActorID string
	Action  string
	Since   *time.Time
}
