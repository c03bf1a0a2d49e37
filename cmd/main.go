package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/bigsnuggles-voice/adapters/llm"
	"github.com/aiandbotsgalore/bigsnuggles-voice/adapters/memory"
	"github.com/aiandbotsgalore/bigsnuggles-voice/adapters/mongo"
	"github.com/aiandbotsgalore/bigsnuggles-voice/adapters/stt"
	"github.com/aiandbotsgalore/bigsnuggles-voice/adapters/tts"
	"github.com/aiandbotsgalore/bigsnuggles-voice/domain/repositories"
	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/api"
	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/auth"
	"github.com/aiandbotsgalore/bigsnuggles-voice/internal/websocket"
	"github.com/aiandbotsgalore/bigsnuggles-voice/usecase"
)

func main() {
	// Load .env if present; real deployments set variables directly
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Storage: MongoDB when configured, in-memory otherwise
	var store repositories.VoiceSessionStore
	var mongoClient *mongo.Client
	if os.Getenv("MONGODB_URI") != "" {
		client, err := mongo.Connect(context.Background(), mongo.ConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		mongoClient = client
		store = mongo.NewVoiceSessionRepository(client.Database)
	} else {
		logger.Warn("MONGODB_URI not set, using in-memory session store")
		store = memory.NewVoiceSessionStore()
	}

	// AI adapters, with mock fallbacks for local development
	var languageModel repositories.LargeLanguageModel
	if os.Getenv("GEMINI_API_KEY") != "" {
		gemini, err := llm.NewGeminiLLM(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini", zap.Error(err))
		}
		languageModel = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, using mock LLM")
		languageModel = llm.NewMockLLM()
	}

	var speechToText repositories.SpeechToText
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		speechToText = stt.NewGoogleSpeechToText()
	} else {
		logger.Warn("GOOGLE_APPLICATION_CREDENTIALS not set, using mock STT")
		speechToText = stt.NewMockSpeechToText()
	}

	var textToSpeech repositories.TextToSpeech
	if os.Getenv("ELEVEN_LABS_API_KEY") != "" {
		elevenLabs, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize Eleven Labs TTS", zap.Error(err))
		}
		textToSpeech = elevenLabs
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY not set, using mock TTS")
		textToSpeech = tts.NewMockTextToSpeech()
	}

	// Session registry and background cleanup
	registry := usecase.NewRegistry(store, speechToText, textToSpeech, languageModel, logger)
	cleanup := usecase.NewSessionCleanupService(registry, logger)
	cleanup.Start()

	// WebSocket hub
	hub := websocket.NewHub(auth.NewVerifier(), registry, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, hub, registry, store, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cleanup.Stop()
	hub.Stop()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if mongoClient != nil {
		if err := mongoClient.Close(ctx); err != nil {
			logger.Error("Failed to close MongoDB connection", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
