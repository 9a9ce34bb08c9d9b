package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lalith-99/pulserelay/internal/api"
	"github.com/lalith-99/pulserelay/internal/auth"
	"github.com/lalith-99/pulserelay/internal/config"
	"github.com/lalith-99/pulserelay/internal/middleware"
	"github.com/lalith-99/pulserelay/internal/mirror"
	"github.com/lalith-99/pulserelay/internal/observ"
	"github.com/lalith-99/pulserelay/internal/relay"
	"github.com/lalith-99/pulserelay/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	//
	// This is where a missing PORT kills the process: a relay nobody
	// can be pointed at is not worth starting.
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ---------------------------------------------------------------
	// 3. Observability taps
	//
	// Both taps are optional. The dashboard hub exists only when the
	// operator configured credentials; the Redis mirror only when
	// REDIS_URL is set. The registry takes whatever combination came
	// out, possibly nil — fanout never depends on either.
	// ---------------------------------------------------------------
	var taps relay.MultiTap

	var dashboardHub *api.DashboardHub
	if cfg.DashboardEnabled() {
		dashboardHub = api.NewDashboardHub(logger)
		taps = append(taps, dashboardHub)
		logger.Info("dashboard enabled", zap.String("username", cfg.DashboardUsername))
	} else {
		logger.Warn("dashboard disabled: DASHBOARD_USERNAME or DASHBOARD_PASSWORD not set")
	}

	if cfg.RedisURL != "" {
		redisTap, err := mirror.NewRedisTap(cfg.RedisURL, mirror.DefaultChannel, logger)
		if err != nil {
			return fmt.Errorf("create redis mirror: %w", err)
		}
		defer redisTap.Close()
		taps = append(taps, redisTap)
		logger.Info("redis delivery mirror enabled", zap.String("channel", mirror.DefaultChannel))
	}

	var tap relay.Tap
	if len(taps) > 0 {
		tap = taps
	}

	// ---------------------------------------------------------------
	// 4. Core: registry + authorization gate
	//
	// The registry is constructed exactly once, here, and handed to
	// every component that needs it. No package-level state anywhere.
	// ---------------------------------------------------------------
	registry := relay.NewRegistry(logger, tap)
	gate := relay.NewGate(auth.NewVerifier(cfg.JWTSecret))

	// ---------------------------------------------------------------
	// 5. HTTP surface
	// ---------------------------------------------------------------
	wsHandler := ws.NewHandler(registry, gate, logger)
	tokenHandler := api.NewTokenHandler(cfg.BroadcastAPIKey, cfg.JWTSecret, logger)
	broadcastHandler := api.NewBroadcastHandler(registry, cfg.BroadcastAPIKey, logger)

	srv := gin.New()
	srv.Use(gin.Logger(), recovery(cfg.Env))

	srv.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "pulserelay", "status": "ok"})
	})
	srv.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv.POST("/auth/token", tokenHandler.Issue)
	srv.POST("/broadcast", broadcastHandler.Trigger)
	srv.GET("/ws/:tenantId", wsHandler.Serve)

	if cfg.DashboardEnabled() {
		dashboardHandler, err := api.NewDashboardHandler(
			registry, dashboardHub,
			cfg.DashboardUsername, cfg.DashboardPassword,
			cfg.JWTSecret, logger,
		)
		if err != nil {
			return fmt.Errorf("create dashboard handler: %w", err)
		}

		srv.POST("/dashboard/login", dashboardHandler.Login)
		srv.GET("/dashboard/logout", dashboardHandler.Logout)

		protected := srv.Group("/dashboard")
		protected.Use(middleware.DashboardAuth(cfg.JWTSecret))
		protected.GET("", dashboardHandler.Stats)
		protected.GET("/ws", dashboardHandler.ServeWS)
	} else {
		srv.GET("/dashboard", api.Disabled)
	}

	// ---------------------------------------------------------------
	// 6. Serve, then drain on SIGINT/SIGTERM
	//
	// gin rides inside http.Server so Shutdown works: stop accepting,
	// let in-flight requests finish, then return. Live websockets are
	// torn down by their own close paths when the listener dies.
	// ---------------------------------------------------------------
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting PulseRelay",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// recovery maps any panic in a handler to a generic 500. Outside
// development the panic detail stays in the logs and out of the
// response body.
func recovery(env string) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		if env == "development" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"message": fmt.Sprintf("%v", recovered),
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"message": "Internal server error",
		})
	})
}
