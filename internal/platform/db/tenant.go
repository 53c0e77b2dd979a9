package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

const schemaPrefix = "tenant_"

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidTenantID reports whether id is safe to splice into a schema name.
func ValidTenantID(id string) bool {
	return tenantIDPattern.MatchString(id)
}

// SchemaName returns the schema that holds a tenant's tables.
func SchemaName(tenantID string) string {
	return schemaPrefix + tenantID
}

func tenantFromSchema(schema string) string {
	return strings.TrimPrefix(schema, schemaPrefix)
}

// tenantSources are consulted in order; the signed token claim wins.
var tenantSources = []func(echo.Context) string{
	func(c echo.Context) string { s, _ := c.Get("jwt_tenant_id").(string); return s },
	func(c echo.Context) string { return c.Request().Header.Get("X-Tenant-ID") },
	func(c echo.Context) string { return c.QueryParam("tenant_id") },
}

func resolveTenant(c echo.Context, fallback string) string {
	for _, source := range tenantSources {
		if id := source(c); id != "" {
			return id
		}
	}
	return fallback
}

// TenantMiddleware pins every request to one tenant schema for its lifetime.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID := resolveTenant(c, defaultTenant)
			if !ValidTenantID(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}
			c.Set("tenant_id", tenantID)

			err := bindTenant(c.Request().Context(), pool, tenantID, func(ctx context.Context) error {
				c.SetRequest(c.Request().WithContext(ctx))
				return next(c)
			})
			var unavailable *connError
			if errors.As(err, &unavailable) {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable").SetInternal(unavailable.err)
			}
			return err
		}
	}
}

// WithTenant runs fn with a connection whose search_path points at the
// tenant's schema. Background jobs use it to reach tenant data outside a
// request.
func WithTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(ctx context.Context) error) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}
	err := bindTenant(ctx, pool, tenantID, fn)
	var unavailable *connError
	if errors.As(err, &unavailable) {
		return unavailable.err
	}
	return err
}

// connError marks failures to obtain the tenant connection, as opposed to
// errors returned by the wrapped function.
type connError struct{ err error }

func (e *connError) Error() string { return e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

func bindTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(ctx context.Context) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return &connError{fmt.Errorf("acquire connection: %w", err)}
	}
	defer conn.Release()

	searchPath := fmt.Sprintf("SET search_path TO %s, public", SchemaName(tenantID))
	if _, err := conn.Exec(ctx, searchPath); err != nil {
		return &connError{fmt.Errorf("select schema for tenant %s: %w", tenantID, err)}
	}

	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return fn(ctx)
}

// ConnFromContext returns the connection bound by TenantMiddleware or WithTenant.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// ListTenants returns the tenant IDs that have a schema in the database.
func ListTenants(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name LIKE 'tenant\_%' ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list tenant schemas: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var schema string
		if err := rows.Scan(&schema); err != nil {
			return nil, fmt.Errorf("scan tenant schema: %w", err)
		}
		tenants = append(tenants, tenantFromSchema(schema))
	}
	return tenants, rows.Err()
}

// CreateTenantSchema provisions a tenant: its schema plus, when
// migrationsDir is set, every pending migration.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, migrationsDir string) error {
	if !ValidTenantID(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}
	schema := SchemaName(tenantID)

	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		return fmt.Errorf("provision schema %s: %w", schema, err)
	}
	if migrationsDir == "" {
		return nil
	}
	if _, err := NewMigrator(pool, migrationsDir).Up(ctx, schema); err != nil {
		return fmt.Errorf("migrate %s: %w", schema, err)
	}
	return nil
}
