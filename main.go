package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/adapter/openai"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/adapter/telegram"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/audio"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/config"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/policy"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/service"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/session"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/store"
	"github.com/TTTPOB/chatgpt-tg-bot/internal/tokenizer"
	adminhttp "github.com/TTTPOB/chatgpt-tg-bot/internal/transport/http"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the YAML config file")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting chatgpt-tg-bot...")
	log.Printf("Admin HTTP Port: %d", cfg.Server.HTTPPort)
	log.Printf("Database: %s", cfg.Database.URL)
	log.Printf("Model: %s", cfg.OpenAI.Model)
	log.Printf("Token budget: %d", cfg.Limits.TokenBudget)

	// Initialize usage ledger
	db, err := store.NewSQLiteStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize token counter
	var counter tokenizer.Counter
	counter, err = tokenizer.NewTiktoken()
	if err != nil {
		log.Printf("WARN: falling back to heuristic token counter: %v", err)
		counter = tokenizer.Heuristic{}
	}

	// Initialize OpenAI client
	oaClient := openai.NewClient(
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.TranscriptionModel,
		cfg.GatewayTimeout(),
	)

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize session registry
	registry := session.NewRegistry(session.Deps{
		Completion:    oaClient,
		Transcription: oaClient,
		Transcoder:    audio.NewFFmpegTranscoder(),
		Counter:       counter,
		Usage:         db,
		DefaultBudget: cfg.Limits.TokenBudget,
	})

	// Initialize service
	svc := service.New(registry, policyEngine, cfg.Access.AllowedSenders)

	// Initialize Telegram client
	tgClient, err := telegram.NewClient(cfg.Telegram.BotToken, svc, cfg.HandleTimeout())
	if err != nil {
		log.Fatalf("Failed to initialize Telegram client: %v", err)
	}
	log.Printf("Authenticated as bot %s", tgClient.BotName())

	// Create admin server
	adminServer := adminhttp.NewServer(registry, db)

	// Start admin server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		if err := adminServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start admin server: %v", err)
		}
	}()

	// Start update loop
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := tgClient.Run(runCtx); err != nil && err != context.Canceled {
			log.Printf("Update loop stopped: %v", err)
		}
	}()

	log.Printf("Admin API started on port %d", cfg.Server.HTTPPort)
	log.Println("Bot started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown admin server gracefully: %v", err)
	}

	log.Println("Bot stopped")
}
