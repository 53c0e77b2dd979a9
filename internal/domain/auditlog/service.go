package auditlog

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"github.com/medichannel/channeling/internal/platform/apperr"
	"github.com/medichannel/channeling/internal/platform/db"
	"github.com/medichannel/channeling/internal/platform/events"
	"github.com/medichannel/channeling/internal/platform/middleware"
	"github.com/medichannel/channeling/internal/platform/validate"
)

type Service struct {
	repo      Repository
	publisher events.Publisher
	topic     string
	logger    zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// SetPublisher streams every recorded entry to topic.
func (s *Service) SetPublisher(p events.Publisher, topic string) {
	s.publisher = p
	s.topic = topic
}

// Record persists e and publishes it. Publishing is best effort once the
// row is written.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	var missing []apperr.FieldError
	if e.Entity == "" {
		missing = append(missing, apperr.FieldError{Field: "entity", Message: "is required"})
	}
	if e.Action == "" {
		missing = append(missing, apperr.FieldError{Field: "action", Message: "is required"})
	}
	if len(missing) > 0 {
		return apperr.Validation(missing...)
	}
	if e.ActorID == "" {
		e.ActorID = "anonymous"
	}
	if e.ActorRoles == nil {
		e.ActorRoles = []string{}
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return err
	}

	if s.publisher == nil {
		return nil
	}
	key := e.Entity
	if e.EntityID != nil {
		key = *e.EntityID
	}
	evt, err := events.New(events.AuditRecorded, db.TenantFromContext(ctx), key, e)
	if err == nil {
		err = s.publisher.Publish(ctx, s.topic, evt)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("audit_id", e.ID.String()).Msg("publish audit entry failed")
	}
	return nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Entry, int, error) {
	if f.Action != "" {
		if err := validate.Var("action", f.Action, "oneof=read create update delete"); err != nil {
			return nil, 0, err
		}
	}
	f.Entity = strings.TrimSpace(f.Entity)
	return s.repo.List(ctx, f, limit, offset)
}

type accessDetails struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	UserAgent string `json:"user_agent,omitempty"`
}

// RecordAccess adapts the HTTP audit middleware to the audit log.
func (s *Service) RecordAccess(ctx context.Context, a middleware.AuditEntry) error {
	details, err := json.Marshal(accessDetails{Method: a.Method, Path: a.Path, UserAgent: a.UserAgent})
	if err != nil {
		return err
	}
	e := &Entry{
		ActorID:    a.UserID,
		ActorRoles: a.UserRoles,
		Action:     a.Action,
		Entity:     a.EntityType,
		EntityID:   optional(a.EntityID),
		RequestID:  optional(a.RequestID),
		StatusCode: a.StatusCode,
		IPAddress:  optional(a.IPAddress),
		Details:    details,
	}
	return s.Record(ctx, e)
}

var _ middleware.AuditRecorder = (*Service)(nil)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
