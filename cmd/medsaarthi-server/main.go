package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sourishdey2005/Med-Saarthi/internal/config"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/assistant"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/patient"
	"github.com/sourishdey2005/Med-Saarthi/internal/domain/safety"
	"github.com/sourishdey2005/Med-Saarthi/internal/platform/cache"
	"github.com/sourishdey2005/Med-Saarthi/internal/platform/db"
	"github.com/sourishdey2005/Med-Saarthi/internal/platform/llm"
	"github.com/sourishdey2005/Med-Saarthi/internal/platform/middleware"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "medsaarthi-server",
		Short:        "Med-Saarthi discharge management API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
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

func requirePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.UsesPostgres() {
		return nil, fmt.Errorf("DATABASE_URL is required for this command")
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := requirePool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.EmbeddedMigrator(pool)
			if err != nil {
				return err
			}
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := requirePool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator, err := db.EmbeddedMigrator(pool)
			if err != nil {
				return err
			}
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo patients into PostgreSQL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := requirePool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := seedPatients(ctx, patient.NewPatientRepoPG(pool), loc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patient(s).\n", n)
			return nil
		},
	}
}

func seedPatients(ctx context.Context, repo patient.PatientRepository, loc *time.Location) (int, error) {
	patients := patient.SeedPatients(loc)
	for _, p := range patients {
		if err := repo.Save(ctx, p); err != nil {
			return 0, fmt.Errorf("seed patient %s: %w", p.ID, err)
		}
	}
	return len(patients), nil
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <patient-id>",
		Short: "Print the medication reconciliation of a patient as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			repo, pool, err := openRepo(ctx, cfg, loc)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			logger := zerolog.Nop()
			asst := assistant.NewService(llm.NewClient(cfg.LLM(), logger), logger)
			svc := patient.NewService(repo, safety.NewAggregator(asst, logger), asst, loc)
			return writeReconciliation(ctx, cmd.OutOrStdout(), svc, args[0])
		},
	}
}

func writeReconciliation(ctx context.Context, w io.Writer, svc *patient.Service, id string) error {
	rec, err := svc.Reconciliation(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// openRepo returns the PostgreSQL repository when DATABASE_URL is set and
// otherwise an in-memory repository loaded with the demo patients.
func openRepo(ctx context.Context, cfg *config.Config, loc *time.Location) (patient.PatientRepository, *pgxpool.Pool, error) {
	if !cfg.UsesPostgres() {
		repo, err := patient.NewMemoryRepo(patient.SeedPatients(loc)...)
		return repo, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return patient.NewPatientRepoPG(pool), pool, nil
}

type server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	patients *patient.Service
	asst     *assistant.Service
	audit    *middleware.AuditLog
}

func newServer(cfg *config.Config, logger zerolog.Logger, repo patient.PatientRepository, kv cache.KVStore, gen assistant.Generator, pool *pgxpool.Pool) (*server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	asst := assistant.NewService(gen, logger)
	asst.SetCache(kv, cfg.ReasoningCacheTTL)
	alerts := safety.NewAggregator(asst, logger)

	return &server{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		patients: patient.NewService(repo, alerts, asst, loc),
		asst:     asst,
		audit:    middleware.NewAuditLog(0),
	}, nil
}

func (s *server) echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(s.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: s.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, middleware.ActorHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if s.cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = s.cfg.RateLimitRPS
	}
	if s.cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = s.cfg.RateLimitBurst
	}
	e.Use(middleware.RateLimit(rateLimitCfg))
	e.Use(middleware.RequestTimeout(s.cfg.RequestTimeout, "/health", "/metrics"))
	e.Use(middleware.Audit(s.logger, s.audit))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	// DB health check endpoint
	var pinger db.Pinger
	if s.pool != nil {
		pinger = s.pool
	}
	e.GET("/health/db", db.HealthHandler(pinger))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiV1 := e.Group("/api/v1")
	patient.NewHandler(s.patients).RegisterRoutes(apiV1)
	assistant.NewHandler(s.asst).RegisterRoutes(apiV1)
	apiV1.GET("/audit-log", s.audit.Handler())

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load timezone")
	}

	// Storage
	ctx := context.Background()
	repo, pool, err := openRepo(ctx, cfg, loc)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open patient store")
	}
	if pool != nil {
		defer pool.Close()
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set, serving demo patients from memory")
	}

	// Reasoning cache
	var kv cache.KVStore = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		kv = cache.NewRedisStore(client, "medsaarthi:")
		logger.Info().Msg("connected to redis")
	}

	if cfg.LLMAPIKey == "" {
		logger.Warn().Msg("LLM_API_KEY not set, reasoning endpoints will fail")
	}
	gen := llm.NewClient(cfg.LLM(), logger)

	srv, err := newServer(cfg, logger, repo, kv, gen, pool)
	if err != nil {
		return err
	}
	e := srv.echo()

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
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
