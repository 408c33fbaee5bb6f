package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-console/internal/api"
	"whatsapp-console/internal/chatbot"
	"whatsapp-console/internal/config"
	"whatsapp-console/internal/database"
	"whatsapp-console/internal/dispatch"
	"whatsapp-console/internal/reconcile"
	"whatsapp-console/internal/scheduler"
	"whatsapp-console/internal/store"
	"whatsapp-console/internal/webhook"
	"whatsapp-console/internal/whatsapp"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadConfig()

	logger, err := newLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting whatsapp console",
		zap.String("env", cfg.Env),
		zap.String("port", cfg.Port),
		zap.String("db_driver", cfg.DBDriver),
	)

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	st := store.New(db, logger)

	providers := func(accessToken string) dispatch.Provider {
		return whatsapp.NewClient(accessToken, cfg.GraphAPIBaseURL, logger)
	}
	clients := func(accessToken string) api.ProviderClient {
		return whatsapp.NewClient(accessToken, cfg.GraphAPIBaseURL, logger)
	}

	dispatcher := dispatch.New(st, providers, logger)
	engine := chatbot.NewEngine(st, dispatcher, logger)
	reconciler := reconcile.New(st, engine, logger)
	webhookHandler := webhook.NewHandler(cfg.VerifyToken, reconciler, logger)

	channelHandler := api.NewChannelHandler(st, clients, logger)
	contactHandler := api.NewContactHandler(st)
	messageHandler := api.NewMessageHandler(st, dispatcher)
	templateHandler := api.NewTemplateHandler(st, clients, logger)
	tokenHandler := api.NewTokenHandler(st)
	chatbotHandler := api.NewChatbotHandler(st)
	scheduledHandler := api.NewScheduledHandler(st)
	statsHandler := api.NewStatsHandler(st)
	healthHandler := api.NewHealthHandler(st)
	externalHandler := api.NewExternalHandler(st, dispatcher)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Origin", "Accept"},
		AllowOrigins:     []string{"*"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	p := ginprom.New(
		ginprom.Engine(r),
		ginprom.Subsystem("gin"),
		ginprom.Path("/metrics"),
	)
	r.Use(p.Instrument())

	// Webhook routes
	r.GET("/webhook", webhookHandler.Verify)
	r.POST("/webhook", webhookHandler.Receive)

	r.GET("/health", healthHandler.Check)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/channels", channelHandler.List)
		apiGroup.POST("/channels", channelHandler.Create)
		apiGroup.PUT("/channels/:id", channelHandler.Update)
		apiGroup.DELETE("/channels/:id", channelHandler.Delete)

		apiGroup.GET("/contacts", contactHandler.List)
		apiGroup.POST("/contacts", contactHandler.Create)
		apiGroup.PUT("/contacts/:id", contactHandler.Update)
		apiGroup.DELETE("/contacts/:id", contactHandler.Delete)

		apiGroup.GET("/messages", messageHandler.List)
		apiGroup.POST("/messages", messageHandler.Send)

		apiGroup.GET("/templates", templateHandler.List)
		apiGroup.POST("/templates", templateHandler.Create)
		apiGroup.PUT("/templates/:id", templateHandler.Update)
		apiGroup.POST("/templates/sync", templateHandler.Sync)

		apiGroup.GET("/tokens", tokenHandler.List)
		apiGroup.POST("/tokens", tokenHandler.Create)
		apiGroup.DELETE("/tokens/:id", tokenHandler.Delete)

		apiGroup.GET("/chatbot/rules", chatbotHandler.List)
		apiGroup.POST("/chatbot/rules", chatbotHandler.Create)
		apiGroup.PUT("/chatbot/rules/:id", chatbotHandler.Update)
		apiGroup.POST("/chatbot/rules/:id/toggle", chatbotHandler.Toggle)
		apiGroup.DELETE("/chatbot/rules/:id", chatbotHandler.Delete)

		apiGroup.GET("/scheduled", scheduledHandler.List)
		apiGroup.POST("/scheduled", scheduledHandler.Create)
		apiGroup.POST("/scheduled/:id/cancel", scheduledHandler.Cancel)
		apiGroup.DELETE("/scheduled/:id", scheduledHandler.Delete)

		apiGroup.GET("/stats", statsHandler.Get)

		external := apiGroup.Group("/external")
		external.Use(api.AuthenticateApiToken(st, logger))
		{
			external.POST("/send-message", externalHandler.SendMessage)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go scheduler.New(st, dispatcher, cfg.SchedulerInterval, logger).Run(workerCtx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		workerCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server stopped gracefully")
	}

	return nil
}

func newLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
