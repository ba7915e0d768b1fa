package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/entities"
)

const defaultErrorRevert = 3 * time.Second

// StatusListener receives every status or level change, for the widget UI.
type StatusListener func(status entities.OrbStatus, level float64)

// StatusPublisher is a pure state holder for the orb's visible status and
// audio level. It makes no decisions; the poller, processor, scheduler and
// speaker producer drive it. An error status reverts to idle after a fixed
// delay unless superseded first.
type StatusPublisher struct {
	mu          sync.Mutex
	status      entities.OrbStatus
	level       float64
	listeners   []StatusListener
	revertTimer *time.Timer
	revertAfter time.Duration
	logger      *zap.Logger
}

// NewStatusPublisher creates a publisher starting at idle.
func NewStatusPublisher(logger *zap.Logger) *StatusPublisher {
	return &StatusPublisher{
		status:      entities.StatusIdle,
		revertAfter: defaultErrorRevert,
		logger:      logger,
	}
}

// SetErrorRevert overrides the error auto-revert delay.
func (p *StatusPublisher) SetErrorRevert(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revertAfter = d
}

// Subscribe registers a listener for status and level changes.
func (p *StatusPublisher) Subscribe(listener StatusListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

// Set transitions to the given status. Setting error arms the auto-revert
// timer; any other transition disarms it.
func (p *StatusPublisher) Set(status entities.OrbStatus) {
	p.mu.Lock()

	if p.revertTimer != nil {
		p.revertTimer.Stop()
		p.revertTimer = nil
	}

	p.status = status
	if status == entities.StatusError {
		p.revertTimer = time.AfterFunc(p.revertAfter, p.revertError)
	}

	level := p.level
	listeners := append([]StatusListener(nil), p.listeners...)
	p.mu.Unlock()

	p.logger.Debug("Status changed", zap.String("status", string(status)))
	for _, fn := range listeners {
		fn(status, level)
	}
}

func (p *StatusPublisher) revertError() {
	p.mu.Lock()
	if p.status != entities.StatusError {
		p.mu.Unlock()
		return
	}
	p.status = entities.StatusIdle
	p.revertTimer = nil
	level := p.level
	listeners := append([]StatusListener(nil), p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(entities.StatusIdle, level)
	}
}

// SetLevel publishes the current audio amplitude (0..1).
func (p *StatusPublisher) SetLevel(level float64) {
	p.mu.Lock()
	p.level = level
	status := p.status
	listeners := append([]StatusListener(nil), p.listeners...)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(status, level)
	}
}

// Status returns the current status.
func (p *StatusPublisher) Status() entities.OrbStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Level returns the current audio amplitude.
func (p *StatusPublisher) Level() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}
