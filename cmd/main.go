package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/acrbridge/adapters"
	"github.com/satriahrh/acrbridge/adapters/acrcloud"
	"github.com/satriahrh/acrbridge/adapters/mongo"
	"github.com/satriahrh/acrbridge/domain/repositories"
	"github.com/satriahrh/acrbridge/internal/api"
	"github.com/satriahrh/acrbridge/internal/auth"
	"github.com/satriahrh/acrbridge/internal/config"
	"github.com/satriahrh/acrbridge/internal/websocket"
	"github.com/satriahrh/acrbridge/usecase"
)

func main() {
	cfg, err := config.Loader{DotEnvFiles: []string{".env"}}.Load()
	if err != nil {
		// No logger yet; fall back to a default one to report the failure
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	level := zap.NewAtomicLevel()
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		level.SetLevel(lvl)
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Device registry
	devices := adapters.NewMemoryDeviceRepository()
	for _, device := range cfg.Devices {
		if _, err := devices.Register(context.Background(), device.SerialNumber, device.Secret, device.Model); err != nil {
			logger.Fatal("Failed to register device",
				zap.String("serial_number", device.SerialNumber),
				zap.Error(err))
		}
	}
	logger.Info("Devices registered", zap.Int("count", len(cfg.Devices)))

	// Recognition vendor
	var (
		factory       repositories.RecognitionClientFactory
		fingerprinter repositories.Fingerprinter
	)
	switch cfg.Recognizer {
	case config.RecognizerMock:
		factory = acrcloud.NewMockFactory(logger)
		fingerprinter = acrcloud.MockFingerprinter{}
	default:
		factory = acrcloud.NewFactory(acrcloud.Options{
			RecognizeInterval: cfg.ACRCloud.RecognizeInterval,
			MaxRecordDuration: cfg.ACRCloud.MaxRecordDuration,
		}, logger)
		fingerprinter = acrcloud.NewExecFingerprinter(cfg.ACRCloud.Extractor, logger)
	}
	logger.Info("Recognizer configured", zap.String("recognizer", cfg.Recognizer))

	// Recognition history
	var (
		historyRepo repositories.RecognitionRepository
		mongoClient *mongo.Client
	)
	switch cfg.History.Backend {
	case config.HistoryMongo:
		mongoClient, err = mongo.NewClient(context.Background(), cfg.Mongo.URI, cfg.Mongo.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		historyRepo = mongo.NewRecognitionRepository(mongoClient.Database, logger)
	case config.HistoryMemory:
		historyRepo = adapters.NewMemoryRecognitionRepository()
	}

	hubOptions := websocket.HubOptions{
		Factory:           factory,
		Fingerprinter:     fingerprinter,
		RequirePermission: cfg.MicPermissionRequired(),
	}
	var (
		historyService *usecase.HistoryService
		cleanup        *usecase.HistoryCleanupService
	)
	if historyRepo != nil {
		historyService = usecase.NewHistoryService(historyRepo, acrcloud.ParseResult, logger)
		hubOptions.History = historyService
		cleanup = usecase.NewHistoryCleanupService(historyRepo, cfg.History.Retention, cfg.History.CleanupInterval, logger)
		cleanup.Start()
	}
	logger.Info("Recognition history configured", zap.String("backend", cfg.History.Backend))

	// Initialize WebSocket hub
	hub := websocket.NewHub(hubOptions, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Hub:     hub,
		Devices: devices,
		Tokens:  auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		History: historyService,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Bridge server started",
		zap.String("port", cfg.Port),
		zap.Bool("requireMicPermission", cfg.MicPermissionRequired()))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	hub.Stop()
	if cleanup != nil {
		cleanup.Stop()
	}
	if mongoClient != nil {
		mongoClient.Close(ctx)
	}

	logger.Info("Server exited")
}
