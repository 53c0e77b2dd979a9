package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medichannel/channeling/internal/config"
	"github.com/medichannel/channeling/internal/domain/appointment"
	"github.com/medichannel/channeling/internal/domain/auditlog"
	"github.com/medichannel/channeling/internal/domain/doctor"
	"github.com/medichannel/channeling/internal/domain/hospital"
	"github.com/medichannel/channeling/internal/domain/invoice"
	"github.com/medichannel/channeling/internal/domain/session"
	"github.com/medichannel/channeling/internal/domain/user"
	"github.com/medichannel/channeling/internal/platform/auth"
	"github.com/medichannel/channeling/internal/platform/db"
	"github.com/medichannel/channeling/internal/platform/events"
	"github.com/medichannel/channeling/internal/platform/metrics"
	"github.com/medichannel/channeling/internal/platform/middleware"
	"github.com/medichannel/channeling/internal/platform/notification"
	"github.com/medichannel/channeling/internal/platform/reminder"
	"github.com/medichannel/channeling/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "channeling-server",
		Short:        "Doctor channeling and appointment booking API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				fmt.Printf("Running migrations on schema: %s\n", schema)
				count, err := db.NewMigrator(pool, dir).Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	addMigrationFlags(upCmd)
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("Migration status for schema: %s\n", schema)
				fmt.Print(formatStatus(statuses))
				return nil
			})
		},
	}
	addMigrationFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}

			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, dir).Down(ctx, schema, steps)
				if err != nil {
					return fmt.Errorf("rollback failed: %w", err)
				}
				fmt.Printf("Rolled back %d migration(s) on schema %s.\n", count, schema)
				return nil
			})
		},
	}
	addMigrationFlags(downCmd)
	downCmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(downCmd)

	return cmd
}

func addMigrationFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	cmd.Flags().String("dir", "./migrations", "Path to migrations directory")
}

func formatStatus(statuses []db.MigrationStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	b.WriteString("---------- ---------------------------------------- ---------- --------------------\n")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(&b, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
	return b.String()
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if !db.ValidTenantID(name) {
				return fmt.Errorf("invalid tenant identifier %q", name)
			}

			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				fmt.Printf("Creating tenant schema: %s\n", db.SchemaName(name))
				if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
					return err
				}
				fmt.Println("Tenant created successfully.")
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (lowercase alphanumeric and underscores)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory; empty skips migrations")
	cmd.AddCommand(createCmd)

	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Appointment reminder emails",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run-once",
		Short: "Send reminders for every tenant once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			job := reminder.NewJob(appointment.NewRepo(pool), reminder.PoolTenants(pool), newMailer(cfg, logger), cfg.ReminderLeadTime, logger)
			res, err := job.Run(ctx)
			fmt.Printf("Tenants: %d, sent: %d, failed: %d\n", res.Tenants, res.Sent, res.Failed)
			return err
		},
	})

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token utilities",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token with JWT_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			tenant, _ := cmd.Flags().GetString("tenant")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := issueToken(cfg, subject, tenant, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	issueCmd.Flags().String("subject", "", "User ID carried in the sub claim")
	issueCmd.Flags().String("tenant", "default", "Tenant the token is scoped to")
	issueCmd.Flags().StringSlice("roles", []string{auth.RoleHospitalAdmin}, "Roles carried in the token")
	issueCmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	cmd.AddCommand(issueCmd)

	return cmd
}

func issueToken(cfg *config.Config, subject, tenant string, roles []string, ttl time.Duration) (string, error) {
	if cfg.JWTSigningKey == "" {
		return "", fmt.Errorf("JWT_SIGNING_KEY is not set")
	}
	if subject == "" {
		return "", fmt.Errorf("--subject is required")
	}
	if !db.ValidTenantID(tenant) {
		return "", fmt.Errorf("invalid tenant identifier %q", tenant)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("--ttl must be positive")
	}
	return auth.IssueToken(jwtConfig(cfg), subject, tenant, roles, ttl)
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.JWTSigningKey),
		Skipper:    auth.AuthSkipper,
	}
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) events.Publisher {
	if cfg.KafkaEnabled() {
		return events.NewKafkaPublisher(cfg.KafkaBrokers)
	}
	return events.NewLogPublisher(logger)
}

func newMailer(cfg *config.Config, logger zerolog.Logger) notification.Mailer {
	if cfg.SMTPEnabled() {
		return notification.NewSMTPMailer(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	return notification.NewLogMailer(logger)
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "channeling-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	var collector *metrics.Collector
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.New(reg)
	}

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()
	mailer := newMailer(cfg, logger)

	var healthChecks []db.Check
	var idemStore middleware.IdempotencyStore = middleware.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		redisStore := middleware.NewRedisIdempotencyStore(client, cfg.IdempotencyTTL)
		idemStore = redisStore
		healthChecks = append(healthChecks, db.Check{Name: "redis", Fn: redisStore.Ping})
	}

	// Repositories and services
	hospitalSvc := hospital.NewService(hospital.NewRepo(pool))
	doctorSvc := doctor.NewService(doctor.NewRepo(pool), hospitalSvc)
	userSvc := user.NewService(user.NewRepo(pool))

	sessionRepo := session.NewRepo(pool)
	apptRepo := appointment.NewRepo(pool)

	sessionSvc := session.NewService(sessionRepo, doctorSvc, apptRepo)
	sessionSvc.SetTxRunner(db.Serializable(pool))

	apptSvc := appointment.NewService(apptRepo, sessionRepo, doctorSvc, userSvc)
	apptSvc.SetTxRunner(db.Serializable(pool))
	apptSvc.SetMaxAttempts(cfg.BookingNumberAttempts)
	apptSvc.SetPublisher(publisher, cfg.KafkaAppointmentTopic)
	apptSvc.SetMailer(mailer)
	apptSvc.SetMetrics(collector)
	apptSvc.SetLogger(logger.With().Str("component", "appointments").Logger())

	invoiceSvc := invoice.NewService(invoice.NewRepo(pool), apptSvc)
	apptSvc.SetPaymentHook(invoiceSvc)

	auditSvc := auditlog.NewService(auditlog.NewRepo(pool), logger.With().Str("component", "audit").Logger())
	auditSvc.SetPublisher(publisher, cfg.KafkaAuditTopic)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(tracing.Middleware())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", middleware.IdempotencyHeader},
	}))
	if collector != nil {
		e.Use(collector.Middleware())
	}

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtConfig(cfg), cfg.DefaultTenant))
	} else {
		e.Use(auth.JWTMiddleware(jwtConfig(cfg)))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, healthChecks...))
	if collector != nil {
		e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	if cfg.RequestTimeout > 0 {
		apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}
	apiV1.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	apiV1.Use(middleware.Audit(logger, auditSvc))
	apiV1.Use(middleware.Idempotency(logger, idemStore))

	hospital.NewHandler(hospitalSvc).RegisterRoutes(apiV1)
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)
	user.NewHandler(userSvc).RegisterRoutes(apiV1)
	session.NewHandler(sessionSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	invoice.NewHandler(invoiceSvc).RegisterRoutes(apiV1)
	auditlog.NewHandler(auditSvc).RegisterRoutes(apiV1)

	var scheduler *reminder.Scheduler
	if cfg.ReminderSchedule != "" {
		job := reminder.NewJob(apptRepo, reminder.PoolTenants(pool), mailer, cfg.ReminderLeadTime,
			logger.With().Str("component", "reminders").Logger())
		job.SetMetrics(collector)
		scheduler, err = reminder.NewScheduler(cfg.ReminderSchedule, job, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule reminders")
		}
		scheduler.Start()
		logger.Info().Str("schedule", cfg.ReminderSchedule).Dur("lead", cfg.ReminderLeadTime).Msg("reminder scheduler started")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("trace provider shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
