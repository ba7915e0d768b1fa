package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// OtoSink plays PCM16 clips through the system audio device using oto.
type OtoSink struct {
	context    *oto.Context
	sampleRate int
	logger     *zap.Logger

	mu     sync.Mutex
	player *oto.Player
	// keep clip data referenced while the device reads from it
	active *Clip
}

var _ Sink = (*OtoSink)(nil)

// NewOtoSink opens the system audio device at the given sample rate, mono,
// 16-bit. The call blocks until the device is ready.
func NewOtoSink(sampleRate int, logger *zap.Logger) (*OtoSink, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	logger.Info("Audio device ready", zap.Int("sampleRate", sampleRate))

	return &OtoSink{
		context:    ctx,
		sampleRate: sampleRate,
		logger:     logger,
	}, nil
}

func (s *OtoSink) SampleRate() int {
	return s.sampleRate
}

// Start begins playback of the clip, stopping any previous clip first.
func (s *OtoSink) Start(clip *Clip) error {
	if clip.Empty() {
		return errors.New("clip is empty")
	}
	if clip.SampleRate != s.sampleRate {
		return fmt.Errorf("clip rate %d does not match device rate %d", clip.SampleRate, s.sampleRate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	player := s.context.NewPlayer(bytes.NewReader(clip.Data))
	player.Play()

	s.player = player
	s.active = clip

	s.logger.Debug("Playback started",
		zap.Duration("duration", clip.Duration()),
		zap.Int("bytes", len(clip.Data)))

	return nil
}

// Stop halts in-flight playback immediately.
func (s *OtoSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *OtoSink) stopLocked() {
	if s.player != nil {
		s.player.Pause()
		s.player.Close()
		s.player = nil
	}
	s.active = nil
}

// Close stops playback and releases the device.
func (s *OtoSink) Close() error {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	// oto v3 contexts have no Close; dropping the reference is all there is
	s.context = nil
	return nil
}
