package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/zinohome/cozychat-voice/adapters"
	"github.com/zinohome/cozychat-voice/adapters/mongo"
	"github.com/zinohome/cozychat-voice/adapters/openai"
	"github.com/zinohome/cozychat-voice/adapters/stt"
	"github.com/zinohome/cozychat-voice/config"
	"github.com/zinohome/cozychat-voice/domain/repositories"
	"github.com/zinohome/cozychat-voice/internal/api"
	"github.com/zinohome/cozychat-voice/internal/auth"
	"github.com/zinohome/cozychat-voice/internal/janitor"
	"github.com/zinohome/cozychat-voice/usecase"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Storage: MongoDB when configured, in-memory otherwise
	var (
		users         repositories.UserRepository
		personalities repositories.PersonalityRepository
		sessions      repositories.SessionRepository
	)
	if cfg.Mongo.URI != "" {
		client, err := mongo.NewClient(cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(ctx)
		}()
		users = mongo.NewUserRepository(client.Database)
		personalities = mongo.NewPersonalityRepository(client.Database)
		sessions = mongo.NewSessionRepository(client.Database)
	} else {
		logger.Warn("No MongoDB URI configured, using in-memory storage")
		users = adapters.NewMemoryUserRepository()
		personalities = adapters.NewMemoryPersonalityRepository()
		sessions = adapters.NewMemorySessionRepository()
	}

	// Speech-to-text: Google Cloud when credentials are present
	var speechToText repositories.SpeechToText
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		speechToText = &stt.GoogleSpeechToText{}
	} else {
		logger.Warn("No Google credentials configured, using mock speech-to-text")
		speechToText = stt.NewMockSpeechToText(logger)
	}

	authenticator, err := auth.NewAuthenticator(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to initialize authenticator", zap.Error(err))
	}

	realtime, err := openai.NewRealtimeSessions(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize realtime session minting", zap.Error(err))
	}

	clipService := usecase.NewVoiceClipService(sessions, speechToText, logger)

	// Initialize API routes
	server := api.NewServer(users, personalities, sessions, clipService, authenticator, realtime, logger)
	server.InitRoutes(e)

	// Background expiry of idle sessions
	sessionJanitor := janitor.NewSessionJanitor(sessions, logger)
	sessionJanitor.Start()
	defer sessionJanitor.Stop()

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("CozyChat gateway started", zap.String("port", cfg.Server.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
