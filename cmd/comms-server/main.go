package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carelink/comms/internal/calls"
	"github.com/carelink/comms/internal/config"
	"github.com/carelink/comms/internal/domain/directory"
	"github.com/carelink/comms/internal/platform/auth"
	"github.com/carelink/comms/internal/platform/db"
	"github.com/carelink/comms/internal/platform/middleware"
	"github.com/carelink/comms/internal/realtime"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "comms-server",
		Short: "Real-time communication server for consultations and calls",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the communication server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// tokenCmd mints a media token from the command line, for poking at a media
// server during development.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a media token for a room (development helper)",
		RunE: func(cmd *cobra.Command, args []string) error {
			room, _ := cmd.Flags().GetString("room")
			identity, _ := cmd.Flags().GetString("identity")
			roleStr, _ := cmd.Flags().GetString("role")
			if room == "" || identity == "" {
				return fmt.Errorf("--room and --identity are required")
			}
			role, err := directory.ParseRole(roleStr)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			issuer := calls.NewTokenIssuer(cfg.MediaAPIKey, cfg.MediaAPISecret, cfg.IsDev())
			token, err := issuer.Issue(room, identity, identity, role, cfg.MediaTokenTTL)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("room", "", "Room name")
	cmd.Flags().String("identity", "", "Participant identity")
	cmd.Flags().String("role", "patient", "Participant role (doctor, patient, admin)")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Directory
	dir := directory.NewRepoPG(pool)

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1", auth.Middleware([]byte(cfg.AuthSecret)), middleware.RateLimit(rateLimitCfg))

	// Realtime core. Only the websocket endpoint stays outside the bearer
	// group; it authenticates its own query token on upgrade.
	manager := realtime.NewManager(logger, cfg.SendBuffer)
	rtHandler := realtime.NewHandler(manager, dir, []byte(cfg.AuthSecret), logger)
	rtHandler.RegisterRoutes(e.Group("/api/v1"), apiV1)

	// Call orchestration
	issuer := calls.NewTokenIssuer(cfg.MediaAPIKey, cfg.MediaAPISecret, cfg.IsDev())
	roomAdmin := calls.NewRoomAdminClient(cfg.MediaHTTPURL, issuer)
	callSvc := calls.NewService(logger)
	callHandler := calls.NewHandler(callSvc, issuer, roomAdmin, dir, manager, cfg.MediaWSURL, cfg.MediaTokenTTL, logger)
	callHandler.RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"version":     "0.1.0",
			"connections": manager.ConnectionCount(),
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

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
