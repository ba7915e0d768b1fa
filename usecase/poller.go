package usecase

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

// DeltaMode selects how new text is derived from the store.
type DeltaMode string

const (
	// DeltaModeEvents consumes discrete rows since a cursor; one row is
	// one delta, no string diffing.
	DeltaModeEvents DeltaMode = "events"

	// DeltaModeLatest consumes one mutable "current text" value per room
	// and strips the previously seen prefix to find the delta.
	DeltaModeLatest DeltaMode = "latest"
)

// PollerConfig tunes the dedup poller.
type PollerConfig struct {
	Mode          DeltaMode
	RoomID        string
	AuthorID      string // excluded from fetches to avoid echo
	Initial       time.Duration
	Step          time.Duration
	Max           time.Duration
	MinDeltaRunes int
	SeenCapacity  int
}

// DefaultPollerConfig mirrors the widget's tuning: 800ms..2s with 100ms
// steps, 3-rune noise floor, 100-entry seen set.
func DefaultPollerConfig(mode DeltaMode, roomID, authorID string) PollerConfig {
	return PollerConfig{
		Mode:          mode,
		RoomID:        roomID,
		AuthorID:      authorID,
		Initial:       800 * time.Millisecond,
		Step:          100 * time.Millisecond,
		Max:           2 * time.Second,
		MinDeltaRunes: 3,
		SeenCapacity:  100,
	}
}

// DedupPoller repeatedly fetches text that is new since the cursor, filters
// out self-authored and already-seen deltas, and appends the rest to the
// work queue. Fetch failures are swallowed: the loop reschedules itself
// regardless of success.
type DedupPoller struct {
	store  repositories.TranscriptStore
	queue  *WorkQueue
	notify func()
	clock  audio.Clock
	logger *zap.Logger

	config PollerConfig
	cursor entities.CursorState
	seen   *entities.SeenSet
}

// NewDedupPoller creates a poller feeding the queue; notify wakes the turn
// processor after an enqueue.
func NewDedupPoller(
	store repositories.TranscriptStore,
	queue *WorkQueue,
	notify func(),
	clock audio.Clock,
	config PollerConfig,
	logger *zap.Logger,
) *DedupPoller {
	return &DedupPoller{
		store:  store,
		queue:  queue,
		notify: notify,
		clock:  clock,
		config: config,
		seen:   entities.NewSeenSet(config.SeenCapacity),
		logger: logger,
	}
}

// Run polls until ctx is cancelled. Each Run starts from a fresh cursor and
// seen set: stale state from a previous room must never suppress new data.
func (p *DedupPoller) Run(ctx context.Context) {
	p.cursor.Reset(p.config.Initial)
	p.seen.Clear()

	p.logger.Info("Polling started",
		zap.String("room", p.config.RoomID),
		zap.String("mode", string(p.config.Mode)))

	for {
		changed := p.pollOnce(ctx)
		if ctx.Err() != nil {
			p.logger.Info("Polling stopped", zap.String("room", p.config.RoomID))
			return
		}

		if changed {
			p.cursor.PollInterval = p.config.Initial
		} else if p.cursor.PollInterval < p.config.Max {
			p.cursor.PollInterval += p.config.Step
			if p.cursor.PollInterval > p.config.Max {
				p.cursor.PollInterval = p.config.Max
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Polling stopped", zap.String("room", p.config.RoomID))
			return
		case <-p.clock.After(p.cursor.PollInterval):
		}
	}
}

// pollOnce performs one fetch and reports whether anything changed.
func (p *DedupPoller) pollOnce(ctx context.Context) bool {
	switch p.config.Mode {
	case DeltaModeLatest:
		return p.pollLatest(ctx)
	default:
		return p.pollEvents(ctx)
	}
}

func (p *DedupPoller) pollEvents(ctx context.Context) bool {
	segments, err := p.store.FetchNew(ctx, p.config.RoomID, p.cursor.LastSeenAt, p.config.AuthorID)
	if err != nil {
		// treated as "no new data" for this tick
		p.logger.Warn("Fetch failed", zap.Error(err))
		return false
	}
	if len(segments) == 0 {
		return false
	}

	entities.SortSegments(segments)
	for _, segment := range segments {
		if segment.CreatedAt.After(p.cursor.LastSeenAt) {
			p.cursor.LastSeenAt = segment.CreatedAt
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if !p.seen.Add(segment.Fingerprint()) {
			continue
		}
		p.queue.Enqueue(text)
	}
	p.notify()
	return true
}

func (p *DedupPoller) pollLatest(ctx context.Context) bool {
	current, err := p.store.FetchLatest(ctx, p.config.RoomID)
	if err != nil {
		p.logger.Warn("Fetch failed", zap.Error(err))
		return false
	}
	if current == "" || current == p.cursor.LastSeenText {
		return false
	}

	delta := strings.TrimSpace(strings.TrimPrefix(current, p.cursor.LastSeenText))
	p.cursor.LastSeenText = current

	if utf8.RuneCountInString(delta) < p.config.MinDeltaRunes {
		// noise, but the value did change
		return true
	}

	fingerprint := entities.FingerprintText(delta)
	if p.seen.Add(fingerprint) {
		p.queue.Enqueue(delta)
		p.notify()
	}
	return true
}
