package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// RemoteSegment is one transcribed utterance stored in the shared transcript
// store. Segments are immutable once created; the speaker producer writes
// them and every listening orb reads them.
type RemoteSegment struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	RoomID    string    `json:"room_id" bson:"room_id"`
	AuthorID  string    `json:"author_id" bson:"author_id"`
	Text      string    `json:"text" bson:"text"`
	FullText  string    `json:"full_text,omitempty" bson:"full_text,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Before reports whether s was created before other. Ties on CreatedAt are
// broken by ID so that ordering is total.
func (s RemoteSegment) Before(other RemoteSegment) bool {
	if s.CreatedAt.Equal(other.CreatedAt) {
		return s.ID < other.ID
	}
	return s.CreatedAt.Before(other.CreatedAt)
}

// Fingerprint returns the dedup key for the segment: the store's own row id
// when present, otherwise a hash of the trimmed text.
func (s RemoteSegment) Fingerprint() string {
	if s.ID != "" {
		return s.ID
	}
	return FingerprintText(s.Text)
}

// SortSegments orders segments by CreatedAt, ties broken by ID.
func SortSegments(segments []RemoteSegment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Before(segments[j])
	})
}

// FingerprintText hashes normalized delta text into a short dedup key.
func FingerprintText(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:12])
}

// QueuedTurn is one unit of text waiting for translation and synthesis.
// Turns live for milliseconds to seconds: created when the poller accepts a
// delta, discarded when the turn processor finishes with them.
type QueuedTurn struct {
	Text       string
	EnqueuedAt time.Time
}
