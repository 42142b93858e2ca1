package main

import (
	"chatai-backend/internal/api"
	"chatai-backend/internal/config"
	"chatai-backend/internal/handlers"
	"chatai-backend/internal/llm"
	"chatai-backend/internal/services"
	"chatai-backend/internal/store"
	"chatai-backend/internal/store/postgres"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Println("Starting ChatAI Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	// 3. Initialize Dependencies (Store, Services, Handlers)
	hub := store.NewHub()
	appStore := store.NewNotifyingStore(postgres.NewPostgresStore(dbpool), hub)
	log.Println("Postgres store initialized (with change notification).")

	provider := llm.NewOpenAIClient(cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, cfg.LLMModel)
	log.Printf("Completion provider initialized (model %s).", cfg.LLMModel)

	authService := services.NewAuthService(appStore, cfg)
	sessionService := services.NewSessionService(appStore)
	completionService := services.NewCompletionService(sessionService, appStore, provider, cfg.TypingDelay)
	conversationService := services.NewConversationService(appStore, hub, sessionService)
	log.Println("Services initialized.")

	authHandler := handlers.NewAuthHandler(authService)
	profileHandler := handlers.NewProfileHandlers(authService, sessionService)
	conversationHandler := handlers.NewConversationHandlers(conversationService, sessionService)
	sessionHandler := handlers.NewSessionHandlers(sessionService, completionService)
	log.Println("Handlers initialized.")

	// 4. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:         authHandler,
		ProfileHandler:      profileHandler,
		ConversationHandler: conversationHandler,
		SessionHandler:      sessionHandler,
		Config:              cfg,
	})
	log.Println("HTTP router configured.")

	// 5. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// WriteTimeout stays generous: the reveal and list-event
		// streams are long-lived responses.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("FATAL: Server error: %v", err)
	}
	log.Println("Server shutdown complete.")
}
