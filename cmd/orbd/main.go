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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/adapters/credentials"
	"github.com/orbvoice/orb/adapters/gemini"
	"github.com/orbvoice/orb/adapters/mongostore"
	"github.com/orbvoice/orb/adapters/stt"
	"github.com/orbvoice/orb/adapters/supabase"
	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/config"
	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
	"github.com/orbvoice/orb/internal/api"
	"github.com/orbvoice/orb/internal/websocket"
	"github.com/orbvoice/orb/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credential pool and rotating synthesizer
	credStore, err := credentials.NewFileStore(cfg.CredentialsPath(), logger)
	if err != nil {
		logger.Fatal("Failed to load credential pool", zap.Error(err))
	}

	factory := func(cred repositories.Credential) (repositories.Synthesizer, error) {
		return gemini.NewSynthesizer(ctx, cred.Key, logger)
	}
	rotator, err := usecase.NewRotatingSynthesizer(ctx, credStore, factory, logger)
	if err != nil {
		logger.Fatal("Failed to build synthesizer", zap.Error(err))
	}

	store, err := newTranscriptStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect transcript store", zap.Error(err))
	}

	transcriber, err := stt.NewTranscriber(cfg.STTEngine, cfg.DeepgramKey, logger)
	if err != nil {
		// speaker mode degrades to unavailable; listening still works
		logger.Warn("Transcription engine not configured", zap.Error(err))
		transcriber = nil
	}

	sink, err := audio.NewOtoSink(cfg.SampleRate, logger)
	if err != nil {
		logger.Fatal("Failed to open audio sink", zap.Error(err))
	}
	defer sink.Close()

	settings, err := cfg.LoadSettings()
	if err != nil {
		logger.Fatal("Failed to load settings", zap.Error(err))
	}

	session := usecase.NewOrbSession(
		store, rotator, sink, audio.SystemClock{},
		cfg.DeltaMode, settings, logger,
	)

	// Status hub for the widget UI
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)
	session.Status().Subscribe(func(status entities.OrbStatus, level float64) {
		hub.Broadcast(status, level)
	})

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, &api.Server{
		Session:      session,
		Rotator:      rotator,
		Credentials:  credStore,
		Store:        store,
		Transcriber:  transcriber,
		Hub:          hub,
		SaveSettings: cfg.SaveSettings,
		Logger:       logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start("127.0.0.1:" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Orb daemon started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	session.StopMonitoring()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newTranscriptStore picks the configured backend: the hosted REST store
// when Supabase settings are present, MongoDB otherwise.
func newTranscriptStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.TranscriptStore, error) {
	if cfg.SupabaseURL != "" {
		return supabase.NewStore(supabase.Config{
			BaseURL: cfg.SupabaseURL,
			APIKey:  cfg.SupabaseKey,
		}, logger)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}
	return mongostore.NewStore(client.Database(cfg.MongoDB), logger), nil
}
