package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/repositories"
	"github.com/orbvoice/orb/internal/websocket"
	"github.com/orbvoice/orb/usecase"
)

// Server bundles the engine pieces the control surface operates on. The
// widget UI is the only intended client; the daemon binds to loopback.
type Server struct {
	Session      *usecase.OrbSession
	Rotator      *usecase.RotatingSynthesizer
	Credentials  repositories.CredentialStore
	Store        repositories.TranscriptStore
	Transcriber  repositories.Transcriber
	Hub          *websocket.Hub
	SaveSettings func(usecase.SessionSettings) error
	Logger       *zap.Logger

	speakerMu sync.Mutex
	speakerOn bool
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, s *Server) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "orbd",
		})
	})

	v1 := e.Group("/api/v1")
	v1.GET("/status", s.getStatus)
	v1.POST("/monitor", s.postMonitor)
	v1.POST("/turns", s.postTurn)
	v1.GET("/settings", s.getSettings)
	v1.PUT("/settings", s.putSettings)
	v1.POST("/credentials", s.postCredential)

	// status stream for the widget UI
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(s.Hub, c, s.Logger)
	})

	// speaker-mode audio uplink
	e.GET("/ws/capture", s.getCapture)
}

func (s *Server) getStatus(c echo.Context) error {
	status := s.Session.Status()
	return c.JSON(http.StatusOK, StatusResponse{
		Status:     status.Status(),
		Level:      status.Level(),
		Monitoring: s.Session.Monitoring(),
	})
}

func (s *Server) postMonitor(c echo.Context) error {
	var req MonitorRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	switch req.Action {
	case "start":
		if req.RoomID != "" {
			settings := s.Session.Settings()
			settings.RoomID = req.RoomID
			s.Session.UpdateSettings(settings)
		}
		// monitoring outlives the request
		if err := s.Session.StartMonitoring(context.Background()); err != nil {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "monitor_start_failed",
				Message: err.Error(),
			})
		}
	case "stop":
		s.Session.StopMonitoring()
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_action",
			Message: "Action must be start or stop",
		})
	}

	return c.JSON(http.StatusOK, map[string]bool{"monitoring": s.Session.Monitoring()})
}

func (s *Server) postTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_text",
			Message: "Text is required",
		})
	}

	s.Session.InjectText(req.Text)
	s.Logger.Info("Turn injected", zap.Int("chars", len(req.Text)))
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Session.Settings())
}

// putSettings replaces the session settings and persists them. This is the
// widget's explicit save; nothing autosaves.
func (s *Server) putSettings(c echo.Context) error {
	var settings usecase.SessionSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	s.Session.UpdateSettings(settings)
	if s.SaveSettings != nil {
		if err := s.SaveSettings(settings); err != nil {
			s.Logger.Error("Failed to persist settings", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "settings_save_failed",
				Message: "Settings applied but not persisted",
			})
		}
	}
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) postCredential(c echo.Context) error {
	var req CredentialRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.Key == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_key",
			Message: "Credential key is required",
		})
	}

	ctx := c.Request().Context()
	err := s.Credentials.Append(ctx, repositories.Credential{Key: req.Key, Label: req.Label})
	if err != nil {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "credential_append_failed",
			Message: err.Error(),
		})
	}
	if s.Rotator != nil {
		if err := s.Rotator.Reload(ctx); err != nil {
			s.Logger.Error("Failed to reload credential pool", zap.Error(err))
		}
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "added"})
}

// getCapture runs one speaker-mode session over the connection: the widget
// streams microphone frames up, the daemon relays them to the transcription
// engine and pushes final transcripts into the shared store. The session
// ends when the widget disconnects.
func (s *Server) getCapture(c echo.Context) error {
	if s.Transcriber == nil || s.Store == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "speaker_unavailable",
			Message: "No transcription engine configured",
		})
	}

	settings := s.Session.Settings()
	if settings.RoomID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_room",
			Message: "Room id is required before speaking",
		})
	}

	s.speakerMu.Lock()
	if s.speakerOn {
		s.speakerMu.Unlock()
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "speaker_active",
			Message: "Speaker mode is already active",
		})
	}
	s.speakerOn = true
	s.speakerMu.Unlock()
	defer func() {
		s.speakerMu.Lock()
		s.speakerOn = false
		s.speakerMu.Unlock()
	}()

	sampleRate := 16000
	if raw := c.QueryParam("sample_rate"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_sample_rate",
				Message: "sample_rate must be a positive integer",
			})
		}
		sampleRate = parsed
	}

	source, err := websocket.HandleCapture(c, s.Logger)
	if err != nil {
		return err
	}

	producer := usecase.NewSpeakerProducer(
		s.Store, s.Transcriber, s.Session.Status(),
		settings.RoomID, settings.AuthorID, s.Logger,
	)
	config := repositories.AudioConfig{
		SampleRate: sampleRate,
		Encoding:   "LINEAR16",
		Language:   c.QueryParam("language"),
	}
	if err := producer.Start(c.Request().Context(), source, config); err != nil {
		s.Logger.Error("Failed to start speaker mode", zap.Error(err))
		source.Close()
		return nil
	}

	source.Pump()
	producer.Stop()
	return nil
}
