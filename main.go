// File: cargalibre/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cargalibre/config"
	"cargalibre/cron"
	"cargalibre/handlers"
	"cargalibre/middleware"
	"cargalibre/routes"
	"cargalibre/services/conversation"
	"cargalibre/services/dispatch"
	ai "cargalibre/services/intelligence"
	"cargalibre/services/messaging"
	"cargalibre/services/router"
	"cargalibre/services/sheets"
	"cargalibre/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	utils.InitCache()

	ctx := context.Background()

	// Collaborators.
	sender := messaging.NewGraphSender(logger)
	store, err := sheets.NewGoogleSheetsStore(ctx, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize sheets store: %v", err)
	}
	geminiClient, err := ai.NewGeminiClient(ctx, config.AppConfig.GeminiAPIKey)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize Gemini client: %v", err)
	}
	assistant := ai.NewGeminiAssistant(geminiClient, logger)

	// Core services.
	catalog := dispatch.NewCatalog(store, utils.GetCacheClient(), logger)
	offers := dispatch.NewOfferManager(catalog, store, sender,
		config.AppConfig.MatchRadiusKm,
		time.Duration(config.AppConfig.OfferTimeoutSec)*time.Second,
		logger)
	flow := conversation.NewFlow(store, sender, offers,
		time.Duration(config.AppConfig.DialogTimeoutSec)*time.Second,
		logger)
	msgRouter := router.NewHandler(flow, offers, assistant, sender, logger)

	// Keep the open-trip cache warm in the background.
	warmer := cron.InitCatalogWarmer(catalog)
	defer warmer.Stop()

	// Create the Gin router.
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.ErrorHandler())
	engine.Use(gin.Logger())
	engine.Use(middleware.RateLimitMiddleware())

	webhookHandler := handlers.NewWebhookHandler(msgRouter, logger)
	routes.RegisterRoutes(engine, webhookHandler)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: engine,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
