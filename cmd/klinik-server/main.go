package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/klinik/klinik/internal/config"
	"github.com/klinik/klinik/internal/domain/billing"
	"github.com/klinik/klinik/internal/domain/medrecord"
	"github.com/klinik/klinik/internal/domain/patient"
	"github.com/klinik/klinik/internal/domain/prescription"
	"github.com/klinik/klinik/internal/domain/queue"
	"github.com/klinik/klinik/internal/domain/schedule"
	"github.com/klinik/klinik/internal/platform/apperror"
	"github.com/klinik/klinik/internal/platform/auth"
	"github.com/klinik/klinik/internal/platform/clock"
	"github.com/klinik/klinik/internal/platform/db"
	"github.com/klinik/klinik/internal/platform/middleware"
)

// visitAdapter exposes queue entries to the medical record workflow,
// avoiding a direct import between the two domain packages.
type visitAdapter struct {
	queues *queue.Service
}

func (a *visitAdapter) Visit(ctx context.Context, queueEntryID uuid.UUID) (medrecord.Visit, error) {
	entry, err := a.queues.Get(ctx, queueEntryID)
	if err != nil {
		return medrecord.Visit{}, err
	}
	return medrecord.Visit{
		PatientID: entry.PatientID,
		DoctorID:  entry.DoctorID,
		Status:    string(entry.Status),
	}, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "klinik-server",
		Short: "Clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

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

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := loadAndConnect()
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			count, err := migrator.Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := loadAndConnect()
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			statuses, err := migrator.Status(context.Background())
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Lock medical records older than the configured age and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := loadAndConnect()
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			sweeper := medrecord.NewSweeper(medrecord.NewRepoPG(pool), clock.System(),
				cfg.RecordLockAfter, cfg.SweepInterval, logger)
			locked, err := sweeper.Run(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Locked %d record(s).\n", locked)
			return nil
		},
	}
}

func loadAndConnect() (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	if cfg.IsDev() && cfg.JWTSecret == "" {
		logger.Warn().Msg("no JWT secret configured, running with dev auth")
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.Middleware(auth.NewConfig(cfg.JWTSecret, cfg.AuthIssuer, cfg.AuthAudience)))
	}

	e.GET("/health", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	clk := clock.System()

	patientSvc := patient.NewService(patient.NewRepoPG(pool))
	scheduleSvc := schedule.NewService(schedule.NewRepoPG(pool))
	queueSvc := queue.NewService(queue.NewRepoPG(pool), queue.NewVitalSignRepoPG(pool), clk)
	recordRepo := medrecord.NewRepoPG(pool)
	recordSvc := medrecord.NewService(recordRepo, &visitAdapter{queues: queueSvc})
	prescriptionSvc := prescription.NewService(prescription.NewRepoPG(pool), clk)
	billingSvc := billing.NewService(billing.NewServiceRepoPG(pool), billing.NewInvoiceRepoPG(pool))

	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	schedule.NewHandler(scheduleSvc).RegisterRoutes(apiV1)
	queue.NewHandler(queueSvc).RegisterRoutes(apiV1)
	medrecord.NewHandler(recordSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	sweeper := medrecord.NewSweeper(recordRepo, clk, cfg.RecordLockAfter, cfg.SweepInterval, logger)
	sweeper.Start(sweepCtx)
	logger.Info().
		Dur("interval", cfg.SweepInterval).
		Dur("lock_after", cfg.RecordLockAfter).
		Msg("record lock sweeper started")

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	cancelSweep()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}
