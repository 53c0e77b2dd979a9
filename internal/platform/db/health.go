package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolUsage is the connection pool snapshot included in health reports.
type PoolUsage struct {
	InUse   int32  `json:"in_use"`
	Idle    int32  `json:"idle"`
	Max     int32  `json:"max"`
	Waited  int64  `json:"acquires_waited"`
	WaitFor string `json:"wait_time"`
}

func poolUsage(pool *pgxpool.Pool) *PoolUsage {
	st := pool.Stat()
	return &PoolUsage{
		InUse:   st.AcquiredConns(),
		Idle:    st.IdleConns(),
		Max:     st.MaxConns(),
		Waited:  st.EmptyAcquireCount(),
		WaitFor: st.AcquireDuration().String(),
	}
}

// Check is an extra dependency checked by the health endpoint, such as the
// Redis idempotency store.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Pool   *PoolUsage        `json:"pool,omitempty"`
}

// HealthHandler pings the database and every extra check. Any failure turns
// the response into a 503.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	all := append([]Check{{Name: "database", Fn: pool.Ping}}, checks...)
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := runChecks(ctx, all)
		report.Pool = poolUsage(pool)

		if report.Status != "healthy" {
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}

func runChecks(ctx context.Context, checks []Check) HealthReport {
	report := HealthReport{Status: "healthy", Checks: make(map[string]string, len(checks))}
	for _, chk := range checks {
		if err := chk.Fn(ctx); err != nil {
			report.Status = "unhealthy"
			report.Checks[chk.Name] = err.Error()
			continue
		}
		report.Checks[chk.Name] = "ok"
	}
	return report
}
