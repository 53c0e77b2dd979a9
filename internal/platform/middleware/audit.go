package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medichannel/channeling/internal/platform/auth"
)

// AuditEntry records who touched which channeling resource and how.
type AuditEntry struct {
	RequestID  string
	TenantID   string
	UserID     string
	UserRoles  []string
	Action     string // read, create, update, delete
	EntityType string
	EntityID   string
	Method     string
	Path       string
	IPAddress  string
	UserAgent  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries. The context still carries the
// tenant connection so entries land in the tenant's schema.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

const apiPrefix = "/api/v1/"

// Audit records every /api/v1/* request after the handler has run. Recorder
// failures are logged and never fail the request.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			ctx := c.Request().Context()
			entry := AuditEntry{
				TenantID:   stringValue(c.Get("tenant_id")),
				RequestID:  stringValue(c.Get("request_id")),
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Action:     httpMethodToAction(req.Method),
				Method:     req.Method,
				Path:       req.URL.Path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: responseStatus(c, err),
				Timestamp:  time.Now().UTC(),
			}
			entry.EntityType, entry.EntityID = extractEntity(req.URL.Path)

			if recorder != nil {
				if recErr := recorder.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("tenant_id", entry.TenantID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("entity_type", entry.EntityType).
				Str("entity_id", entry.EntityID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Msg("api_access")

			return err
		}
	}
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}

// responseStatus returns the status the client will see, including errors
// that echo has not rendered yet.
func responseStatus(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractEntity parses /api/v1/<type>/<id>/... into its type and id.
func extractEntity(path string) (entityType, entityID string) {
	segments := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	entityType = segments[0]
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			entityID = segments[1]
		}
	}
	return entityType, entityID
}
