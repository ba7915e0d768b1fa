package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

const fatalTurnCooldown = 500 * time.Millisecond

// TurnSettings carries the session configuration each turn is synthesized
// with.
type TurnSettings struct {
	Language     string
	Voice        string
	Instructions string
}

// TurnProcessor drains the work queue strictly in arrival order, one turn
// at a time: dequeue, synthesize, schedule playback, wait for completion,
// repeat. A failed turn surfaces a transient error status and, after a
// short cool-down, the queue continues with the next item.
type TurnProcessor struct {
	queue     *WorkQueue
	synth     repositories.Synthesizer
	scheduler *Scheduler
	status    *StatusPublisher
	settings  func() TurnSettings
	logger    *zap.Logger

	cooldown time.Duration
	wake     chan struct{}
}

// NewTurnProcessor creates a processor. settings is read per turn so
// configuration changes apply to the next turn without restarting.
func NewTurnProcessor(
	queue *WorkQueue,
	synth repositories.Synthesizer,
	scheduler *Scheduler,
	status *StatusPublisher,
	settings func() TurnSettings,
	logger *zap.Logger,
) *TurnProcessor {
	return &TurnProcessor{
		queue:     queue,
		synth:     synth,
		scheduler: scheduler,
		status:    status,
		settings:  settings,
		logger:    logger,
		cooldown:  fatalTurnCooldown,
		wake:      make(chan struct{}, 1),
	}
}

// Notify wakes the processor after an enqueue. Safe from any goroutine;
// redundant notifications coalesce.
func (t *TurnProcessor) Notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled. It is the only goroutine
// that dequeues, so at most one synthesis call is ever outstanding.
func (t *TurnProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.wake:
		}

		// iterative drain; a long session must not grow a call stack
		for {
			if ctx.Err() != nil {
				return
			}
			turn, ok := t.queue.DequeueIfIdle()
			if !ok {
				break
			}
			t.processTurn(ctx, turn)
		}
	}
}

func (t *TurnProcessor) processTurn(ctx context.Context, turn entities.QueuedTurn) {
	defer t.queue.Release()

	settings := t.settings()
	t.status.Set(entities.StatusBuffering)
	t.logger.Info("Processing turn",
		zap.Int("chars", len(turn.Text)),
		zap.String("language", settings.Language))

	clip, err := t.synth.Synthesize(ctx, repositories.SynthesisRequest{
		Text:         turn.Text,
		Language:     settings.Language,
		Voice:        settings.Voice,
		Instructions: settings.Instructions,
	})

	// a result arriving after cancellation is discarded, not applied
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		t.failTurn(ctx, err)
		return
	}
	if clip.Empty() {
		t.logger.Debug("Empty synthesis result, completing turn as no-op")
		t.status.Set(entities.StatusIdle)
		return
	}

	clip, err = audio.Resample(clip, t.scheduler.SinkRate())
	if err != nil {
		t.failTurn(ctx, &repositories.SynthesisError{Kind: repositories.FailureFatal, Err: err})
		return
	}

	pb := t.scheduler.Schedule(clip)
	select {
	case <-ctx.Done():
		return
	case <-pb.Done():
	}

	if !pb.Interrupted() {
		t.status.Set(entities.StatusIdle)
	}
}

// failTurn surfaces a transient error status and waits out the cool-down so
// one poisoned item cannot spin the drain loop.
func (t *TurnProcessor) failTurn(ctx context.Context, err error) {
	t.logger.Error("Turn failed",
		zap.String("kind", string(repositories.Classify(err))),
		zap.Error(err))
	t.status.Set(entities.StatusError)

	select {
	case <-ctx.Done():
	case <-time.After(t.cooldown):
	}
}
