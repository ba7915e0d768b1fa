package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

// SessionSettings is the session-scoped configuration the widget persists.
type SessionSettings struct {
	RoomID       string `json:"room_id"`
	AuthorID     string `json:"author_id"`
	Language     string `json:"language"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
}

// OrbSession owns one orb's monitoring lifecycle: the dedup poller, the
// work queue, the turn processor and the playback scheduler, all scoped to
// this session instead of ambient globals. Toggling monitoring off stops
// the poll loop, clears the queue, discards late synthesis results and
// stops all audio.
type OrbSession struct {
	store     repositories.TranscriptStore
	synth     repositories.Synthesizer
	queue     *WorkQueue
	scheduler *Scheduler
	status    *StatusPublisher
	clock     audio.Clock
	deltaMode DeltaMode
	logger    *zap.Logger

	mu              sync.Mutex
	settings        SessionSettings
	cancel          context.CancelFunc
	monitoring      bool
	notifyProcessor func()
}

// NewOrbSession wires the engine. The scheduler's events drive the status
// publisher: speaking on start, level updates, idle handled by the
// processor after completion.
func NewOrbSession(
	store repositories.TranscriptStore,
	synth repositories.Synthesizer,
	sink audio.Sink,
	clock audio.Clock,
	deltaMode DeltaMode,
	settings SessionSettings,
	logger *zap.Logger,
) *OrbSession {
	status := NewStatusPublisher(logger)
	scheduler := NewScheduler(sink, clock, logger)
	scheduler.SetListeners(
		func(level float64) {
			status.Set(entities.StatusSpeaking)
			status.SetLevel(level)
		},
		func() {
			status.SetLevel(0)
		},
	)

	return &OrbSession{
		store:     store,
		synth:     synth,
		queue:     NewWorkQueue(logger),
		scheduler: scheduler,
		status:    status,
		clock:     clock,
		deltaMode: deltaMode,
		settings:  settings,
		logger:    logger,
	}
}

// Status exposes the status publisher for UI subscriptions.
func (s *OrbSession) Status() *StatusPublisher {
	return s.status
}

// Settings returns the current session settings.
func (s *OrbSession) Settings() SessionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the session settings. Takes effect on the next
// turn; changing the room requires restarting monitoring.
func (s *OrbSession) UpdateSettings(settings SessionSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Monitoring reports whether the poll loop is running.
func (s *OrbSession) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

// StartMonitoring begins polling the room and draining turns. Restarting
// resets the cursor and seen set inside the poller.
func (s *OrbSession) StartMonitoring(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.monitoring {
		return fmt.Errorf("already monitoring")
	}
	if s.settings.RoomID == "" {
		return fmt.Errorf("room id is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.monitoring = true
	s.queue.Clear()

	processor := NewTurnProcessor(s.queue, s.synth, s.scheduler, s.status, s.turnSettings, s.logger)
	poller := NewDedupPoller(
		s.store,
		s.queue,
		processor.Notify,
		s.clock,
		DefaultPollerConfig(s.deltaMode, s.settings.RoomID, s.settings.AuthorID),
		s.logger,
	)

	go processor.Run(runCtx)
	go poller.Run(runCtx)

	// manual turns injected while monitoring wake this processor
	s.notifyProcessor = processor.Notify

	s.logger.Info("Monitoring started", zap.String("room", s.settings.RoomID))
	return nil
}

// StopMonitoring halts the poll loop, clears pending turns and stops all
// scheduled and playing audio.
func (s *OrbSession) StopMonitoring() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.monitoring {
		return
	}
	s.cancel()
	s.cancel = nil
	s.monitoring = false
	s.notifyProcessor = nil

	s.queue.Clear()
	s.scheduler.StopAll()
	s.status.Set(entities.StatusIdle)

	s.logger.Info("Monitoring stopped")
}

// InjectText enqueues operator "instant test" input through the same entry
// point as network-derived turns, so it plays after anything already
// pending.
func (s *OrbSession) InjectText(text string) {
	if text == "" {
		return
	}
	s.queue.Enqueue(text)

	s.mu.Lock()
	notify := s.notifyProcessor
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
}

func (s *OrbSession) turnSettings() TurnSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return TurnSettings{
		Language:     s.settings.Language,
		Voice:        s.settings.Voice,
		Instructions: s.settings.Instructions,
	}
}
