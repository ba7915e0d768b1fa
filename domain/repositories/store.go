package repositories

import (
	"context"
	"time"

	"github.com/orbvoice/orb/domain/entities"
)

// TranscriptStore is the shared remote store holding transcribed speech
// segments per room. Listening orbs poll it; the speaker producer writes to
// it. Implementations must return FetchNew results ordered by CreatedAt
// (ties broken by id) and must support excluding an author so an orb never
// replays its own speech.
type TranscriptStore interface {
	// FetchNew returns segments created strictly after since, excluding
	// those authored by excludeAuthor when non-empty.
	FetchNew(ctx context.Context, roomID string, since time.Time, excludeAuthor string) ([]entities.RemoteSegment, error)

	// FetchLatest returns the current full transcript text for the room,
	// for backends that expose a single mutable latest value instead of
	// discrete rows. An empty string with nil error means no text yet.
	FetchLatest(ctx context.Context, roomID string) (string, error)

	// Push writes a new segment. Fire-and-forget from the producer's point
	// of view; an error only means this write did not land.
	Push(ctx context.Context, segment entities.RemoteSegment) error

	// RegisterParticipant upserts a participant id so writes can reference
	// it. Safe to call repeatedly.
	RegisterParticipant(ctx context.Context, participantID string) error
}
