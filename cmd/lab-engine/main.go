package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/labengine/internal/config"
	"github.com/ehr/labengine/internal/domain/labs"
	"github.com/ehr/labengine/internal/labengine"
	"github.com/ehr/labengine/internal/platform/auth"
	"github.com/ehr/labengine/internal/platform/db"
	"github.com/ehr/labengine/internal/platform/metrics"
	"github.com/ehr/labengine/internal/platform/middleware"
)

const version = "0.1.0"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lab-engine",
		Short:        "Lab result interpretation and trend engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("guidelines", "", "guideline table YAML (defaults to GUIDELINES_FILE or the embedded table)")

	root.AddCommand(serveCmd())
	root.AddCommand(interpretCmd())
	root.AddCommand(guidelinesCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the lab interpretation API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("guidelines"); path != "" {
				cfg.GuidelinesFile = path
			}
			return runServer(cfg)
		},
	}
}

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadTable reads the guideline table from path, or the embedded default
// when path is empty.
func loadTable(path string) (*labengine.Table, error) {
	if path == "" {
		return labengine.DefaultTable()
	}
	return labengine.LoadTableFile(path)
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg.IsDev())

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	table, err := loadTable(cfg.GuidelinesFile)
	if err != nil {
		logger.Error().Err(err).Str("file", cfg.GuidelinesFile).Msg("failed to load guideline table")
		return err
	}
	logger.Info().Int("guidelines", table.Len()).Int("aliases", len(table.Aliases())).Msg("guideline table loaded")

	var pool *pgxpool.Pool
	if cfg.HasDatabase() {
		pool, err = db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to database")
			return err
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set; patient lab history endpoints are disabled")
	}

	jwtCfg, err := jwtConfig(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load token verification key")
		return err
	}

	e := newServer(serverDeps{
		cfg:     cfg,
		logger:  logger,
		engine:  labengine.New(table),
		pool:    pool,
		metrics: metrics.New(),
		jwt:     jwtCfg,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func jwtConfig(cfg *config.Config) (auth.JWTConfig, error) {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthPublicKeyFile != "" {
		key, err := auth.LoadPublicKey(cfg.AuthPublicKeyFile)
		if err != nil {
			return jc, err
		}
		jc.PublicKey = key
	} else {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return jc, nil
}

type serverDeps struct {
	cfg     *config.Config
	logger  zerolog.Logger
	engine  *labengine.Engine
	pool    *pgxpool.Pool
	metrics *metrics.Registry
	jwt     auth.JWTConfig
}

// newServer wires middleware and routes. A nil pool disables the
// repository-backed routes.
func newServer(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewValidator()

	e.Use(middleware.Recovery(d.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(d.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.Metrics(d.metrics))

	if d.cfg.IsDev() && d.cfg.AuthSigningKey == "" && d.cfg.AuthPublicKeyFile == "" {
		d.logger.Warn().Msg("development mode: all requests run as the development identity")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(d.jwt))
	}
	e.Use(middleware.Audit(d.logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if d.pool != nil {
		e.GET("/health/db", db.HealthHandler(d.pool))
	}
	e.GET("/metrics", echo.WrapHandler(d.metrics.Handler()))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: d.cfg.RateLimitRPS,
		BurstSize:         d.cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))

	var orders labs.LabOrderRepository
	if d.pool != nil {
		orders = labs.NewLabOrderRepoPG(d.pool)
	}
	svc := labs.NewService(d.engine, orders, d.metrics, d.logger)
	labs.NewHandler(svc).RegisterRoutes(apiV1)

	return e
}
