package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/avisense/birdwatch/adapters"
	"github.com/avisense/birdwatch/adapters/birdnet"
	"github.com/avisense/birdwatch/adapters/blob"
	"github.com/avisense/birdwatch/adapters/mongo"
	"github.com/avisense/birdwatch/domain/repositories"
	"github.com/avisense/birdwatch/internal/api"
	"github.com/avisense/birdwatch/internal/classify"
	"github.com/avisense/birdwatch/internal/upload"
	"github.com/avisense/birdwatch/internal/websocket"
	"github.com/avisense/birdwatch/usecase"
)

func main() {
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Segment and artifact storage
	audioDir := os.Getenv("AUDIO_DIR")
	if audioDir == "" {
		audioDir = "audio_files"
	}
	segments, err := blob.NewFilesystemStore(audioDir, logger)
	if err != nil {
		logger.Fatal("failed to initialize audio storage", zap.Error(err))
	}

	// Document storage: MongoDB when configured, in-memory otherwise
	var (
		observations repositories.ObservationRepository
		devices      repositories.DeviceRepository
		logs         repositories.LogRepository
		mongoClient  *mongo.Client
	)
	if os.Getenv("MONGODB_URI") != "" {
		mongoClient, err = mongo.NewClient(logger)
		if err != nil {
			logger.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		observations = mongo.NewObservationRepository(mongoClient.Database)
		devices = mongo.NewDeviceRepository(mongoClient.Database)
		logs = mongo.NewLogRepository(mongoClient.Database)
	} else {
		logger.Warn("MONGODB_URI not set, using in-memory document stores")
		observations = adapters.NewMemoryObservationRepository()
		devices = adapters.NewMemoryDeviceRepository()
		logs = adapters.NewMemoryLogRepository()
	}

	// Classifier capability
	var classifier repositories.Classifier
	if os.Getenv("ANALYZER_URL") != "" {
		classifier = birdnet.NewClient(birdnet.Config{}, logger)
	} else {
		logger.Warn("ANALYZER_URL not set, using mock classifier")
		classifier = birdnet.NewMockClassifier("Turdus merula", logger)
	}

	// Ingestion pipeline
	gapWait := durationEnv("GAP_WAIT", 5*time.Second)
	tracker := upload.NewTracker(gapWait, logger)

	hub := websocket.NewHub(logger)
	go hub.Run()

	dispatcher := classify.NewDispatcher(classifier, observations, tracker, hub, logger)
	dispatcher.Start(intEnv("CLASSIFY_WORKERS", 2))

	reassembler := usecase.NewReassembler(segments, logger)
	ingest := usecase.NewIngestService(segments, observations, devices, tracker, reassembler, dispatcher, hub, logger)

	// Initialize API routes
	cfg := api.Config{
		FrameEncoding: frameEncoding(logger),
		MaxFrameBytes: int64(intEnv("MAX_FRAME_BYTES", 1<<20)),
		APIKey:        os.Getenv("API_KEY"),
	}
	api.InitRoutes(e, cfg, ingest, observations, devices, logs, segments, hub, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", port),
		zap.String("frameEncoding", cfg.FrameEncoding),
		zap.String("audioDir", audioDir))

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

	// Let queued classification jobs finish before the process exits.
	dispatcher.Stop()

	if mongoClient != nil {
		if err := mongoClient.Close(ctx); err != nil {
			logger.Error("MongoDB shutdown error", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

func frameEncoding(logger *zap.Logger) string {
	switch os.Getenv("FRAME_ENCODING") {
	case "", api.FrameEncodingBinary:
		return api.FrameEncodingBinary
	case api.FrameEncodingHeaders:
		return api.FrameEncodingHeaders
	default:
		logger.Warn("Unknown FRAME_ENCODING, falling back to binary",
			zap.String("value", os.Getenv("FRAME_ENCODING")))
		return api.FrameEncodingBinary
	}
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
