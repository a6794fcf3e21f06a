package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/TeaToe17/jalev1/internal/config"
	"github.com/TeaToe17/jalev1/internal/database"
	"github.com/TeaToe17/jalev1/internal/handlers"
	"github.com/TeaToe17/jalev1/internal/middleware"
	"github.com/TeaToe17/jalev1/internal/moderation"
	"github.com/TeaToe17/jalev1/internal/push"
	"github.com/TeaToe17/jalev1/internal/queue"
	"github.com/TeaToe17/jalev1/internal/realtime"
	"github.com/TeaToe17/jalev1/internal/routes"
	"github.com/TeaToe17/jalev1/internal/services"
	"github.com/TeaToe17/jalev1/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	log.Info().Str("environment", cfg.Env).Msg("Starting Jale Backend...")

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	log.Info().Msg("Database migrations complete")

	rdb := database.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, log)

	// Push providers. Missing credentials skip the channel with a
	// warning; the dispatcher tolerates nil providers.
	ctx := context.Background()
	var direct push.DirectPush
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := push.NewFCMClient(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			log.Warn().Err(err).Msg("FCM unavailable, direct push channel disabled")
		} else {
			direct = fcm
		}
	} else {
		log.Warn().Msg("FIREBASE_CREDENTIALS_FILE not set, direct push channel disabled")
	}

	var subs push.SubscriptionPush
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		subs = push.NewWebPushClient(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	} else {
		log.Warn().Msg("VAPID keys not set, web push channel disabled")
	}

	email := push.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)

	// Reminder queue (Redis-backed, runs in-process)
	queueClient, err := queue.NewAsynqClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create queue client")
	}
	defer queueClient.Close()

	queueServer, err := queue.NewAsynqServer(cfg.RedisAddr, cfg.RedisPassword, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create queue server")
	}

	// Services
	ledger := services.NewLedger(db, log)
	dispatcher := services.NewDispatcher(db, direct, subs, log)
	escalation := services.NewEscalation(
		queueClient, ledger, dispatcher, email, db,
		cfg.ReminderPushDelay, cfg.ReminderEmailDelay,
		cfg.FrontendURL, log,
	)
	ledger.SetReminders(escalation)
	escalation.Register(queueServer)

	hub := realtime.NewHub()
	defer hub.Close()

	gate := moderation.NewContactFilter()

	chatHandler := handlers.NewChatHandler(ledger, dispatcher, hub, gate, db, rdb, cfg.JWTSecret, cfg.FrontendURL, log)

	// Router
	r := gin.New()
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.ErrorHandlerMiddleware(log))
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware(cfg.FrontendURL))

	generalLimiter := middleware.NewIPRateLimiter(rate.Limit(10.0), 50)
	r.Use(func(c *gin.Context) {
		// Websocket upgrades are long-lived, exempt them
		if len(c.Request.URL.Path) >= 4 && c.Request.URL.Path[:4] == "/ws/" {
			c.Next()
			return
		}
		middleware.RateLimitMiddleware(generalLimiter, log)(c)
	})

	api := r.Group("/api")
	{
		routes.RegisterChatRoutes(api, chatHandler, cfg.JWTSecret)
		routes.RegisterPushRoutes(api, chatHandler, cfg.JWTSecret)
	}

	r.GET("/ws/chat/:userId", chatHandler.HandleChatSocket)

	r.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		redisStatus := "ok"

		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "error"
		}

		if _, err := rdb.Ping(c.Request.Context()).Result(); err != nil {
			redisStatus = "error"
		}

		status := "ok"
		if dbStatus != "ok" || redisStatus != "ok" {
			status = "degraded"
		}

		c.JSON(200, gin.H{
			"status": status,
			"checks": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
			},
		})
	})

	// Run the reminder worker alongside the HTTP server
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go func() {
		if err := queueServer.Run(workerCtx); err != nil {
			log.Error().Err(err).Msg("Reminder worker stopped")
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server gracefully...")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
