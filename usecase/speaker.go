package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

// CaptureSource delivers raw audio frames from the local microphone or
// screen share. The engine treats capture as an external collaborator.
type CaptureSource interface {
	Frames() <-chan []byte
	Close() error
}

// SpeakerProducer is the parallel producer of speaker mode: it streams
// captured audio to a speech-to-text engine and pushes each final
// transcript into the shared store so other participants' orbs can pick it
// up. It never feeds this instance's own work queue.
type SpeakerProducer struct {
	store       repositories.TranscriptStore
	transcriber repositories.Transcriber
	status      *StatusPublisher
	logger      *zap.Logger

	roomID   string
	authorID string

	mu      sync.Mutex
	cancel  context.CancelFunc
	full    strings.Builder
	running bool
}

// NewSpeakerProducer creates a producer for the given room and author. The
// transcription engine is chosen by the caller at session start.
func NewSpeakerProducer(
	store repositories.TranscriptStore,
	transcriber repositories.Transcriber,
	status *StatusPublisher,
	roomID string,
	authorID string,
	logger *zap.Logger,
) *SpeakerProducer {
	return &SpeakerProducer{
		store:       store,
		transcriber: transcriber,
		status:      status,
		roomID:      roomID,
		authorID:    authorID,
		logger:      logger,
	}
}

// Start begins capturing and transcribing. It registers the author with the
// store first so pushed segments can reference it.
func (s *SpeakerProducer) Start(ctx context.Context, source CaptureSource, config repositories.AudioConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("speaker mode already active")
	}
	if s.roomID == "" {
		return fmt.Errorf("room id is required")
	}

	if err := s.store.RegisterParticipant(ctx, s.authorID); err != nil {
		s.logger.Warn("Participant registration failed", zap.Error(err))
	}

	stream, err := s.transcriber.Start(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to start %s transcription: %w", s.transcriber.Name(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.full.Reset()
	s.status.Set(entities.StatusRecording)

	go s.pump(runCtx, source, stream)
	go s.collect(runCtx, stream)

	s.logger.Info("Speaker mode started",
		zap.String("room", s.roomID),
		zap.String("engine", s.transcriber.Name()))
	return nil
}

// Stop halts capture and transcription.
func (s *SpeakerProducer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	s.status.Set(entities.StatusIdle)

	s.logger.Info("Speaker mode stopped")
}

// Running reports whether speaker mode is active.
func (s *SpeakerProducer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SpeakerProducer) pump(ctx context.Context, source CaptureSource, stream repositories.TranscriberStream) {
	defer source.Close()
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source.Frames():
			if !ok {
				return
			}
			if err := stream.Send(frame); err != nil {
				s.logger.Error("Failed to send audio frame", zap.Error(err))
				return
			}
		}
	}
}

func (s *SpeakerProducer) collect(ctx context.Context, stream repositories.TranscriberStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case result, ok := <-stream.Results():
			if !ok {
				return
			}
			if !result.Final || strings.TrimSpace(result.Text) == "" {
				continue
			}
			s.push(ctx, strings.TrimSpace(result.Text))
		}
	}
}

// push writes one segment fire-and-forget; an error only loses this write.
func (s *SpeakerProducer) push(ctx context.Context, text string) {
	s.mu.Lock()
	if s.full.Len() > 0 {
		s.full.WriteString(" ")
	}
	s.full.WriteString(text)
	fullText := s.full.String()
	s.mu.Unlock()

	segment := entities.RemoteSegment{
		ID:        uuid.NewString(),
		RoomID:    s.roomID,
		AuthorID:  s.authorID,
		Text:      text,
		FullText:  fullText,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Push(ctx, segment); err != nil {
		s.logger.Error("Failed to push segment", zap.Error(err))
		return
	}
	s.logger.Debug("Segment pushed", zap.Int("chars", len(text)))
}
