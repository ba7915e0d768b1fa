package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/audio"
)

// Playback tracks one scheduled clip. Done is closed when the clip finished
// or was stopped early; Interrupted distinguishes the two.
type Playback struct {
	started chan struct{}
	done    chan struct{}

	mu          sync.Mutex
	interrupted bool
}

// Started is closed when the clip begins playing.
func (p *Playback) Started() <-chan struct{} {
	return p.started
}

// Done is closed when the clip finished or was stopped.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Interrupted reports whether the clip was halted by StopAll before
// completing. Interrupted clips emit no completion event.
func (p *Playback) Interrupted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interrupted
}

func (p *Playback) markInterrupted() {
	p.mu.Lock()
	p.interrupted = true
	p.mu.Unlock()
}

// Scheduler places decoded clips on the shared output timeline so that
// consecutive turns play back to back without gaps or overlap. It keeps a
// monotonic next-start cursor: each clip starts at max(cursor, now) and
// advances the cursor by its duration.
type Scheduler struct {
	sink   audio.Sink
	clock  audio.Clock
	logger *zap.Logger

	mu         sync.Mutex
	nextStart  time.Time
	generation int

	onStarted  func(level float64)
	onFinished func()
}

// NewScheduler creates a scheduler over the given sink and clock.
func NewScheduler(sink audio.Sink, clock audio.Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sink:   sink,
		clock:  clock,
		logger: logger,
	}
}

// SetListeners registers the status feed callbacks. onStarted receives the
// clip's amplitude; onFinished fires exactly once per clip that ran to
// completion and never for stopped clips.
func (s *Scheduler) SetListeners(onStarted func(level float64), onFinished func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStarted = onStarted
	s.onFinished = onFinished
}

// SinkRate returns the output sample rate clips must be resampled to.
func (s *Scheduler) SinkRate() int {
	return s.sink.SampleRate()
}

// Schedule queues the clip for gapless sequential playback and returns its
// playback handle immediately.
func (s *Scheduler) Schedule(clip *audio.Clip) *Playback {
	pb := &Playback{
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	now := s.clock.Now()
	start := s.nextStart
	if start.Before(now) {
		start = now
	}
	s.nextStart = start.Add(clip.Duration())
	generation := s.generation
	onStarted, onFinished := s.onStarted, s.onFinished
	s.mu.Unlock()

	s.logger.Debug("Clip scheduled",
		zap.Time("start", start),
		zap.Duration("duration", clip.Duration()))

	go s.run(pb, clip, start, generation, onStarted, onFinished)
	return pb
}

func (s *Scheduler) run(pb *Playback, clip *audio.Clip, start time.Time, generation int, onStarted func(float64), onFinished func()) {
	defer close(pb.done)

	if wait := start.Sub(s.clock.Now()); wait > 0 {
		<-s.clock.After(wait)
	}

	if s.stale(generation) {
		pb.markInterrupted()
		return
	}

	if err := s.sink.Start(clip); err != nil {
		s.logger.Error("Sink refused clip", zap.Error(err))
		pb.markInterrupted()
		return
	}
	close(pb.started)
	if onStarted != nil {
		onStarted(clip.Level())
	}

	<-s.clock.After(clip.Duration())

	if s.stale(generation) {
		pb.markInterrupted()
		return
	}
	if onFinished != nil {
		onFinished()
	}
}

func (s *Scheduler) stale(generation int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return generation != s.generation
}

// StopAll halts pending and in-flight clips immediately and resets the
// next-start cursor to now. Stopped clips never emit completion.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	s.generation++
	s.nextStart = s.clock.Now()
	s.mu.Unlock()

	s.sink.Stop()
	s.logger.Debug("Playback stopped")
}
