package usecase

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

type fakeCapture struct {
	frames chan []byte
	closed bool
	mu     sync.Mutex
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{frames: make(chan []byte, 16)}
}

func (c *fakeCapture) Frames() <-chan []byte { return c.frames }

func (c *fakeCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeStream struct {
	mu      sync.Mutex
	sent    [][]byte
	results chan repositories.Transcript
}

func (s *fakeStream) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, frame)
	return nil
}

func (s *fakeStream) Results() <-chan repositories.Transcript { return s.results }

func (s *fakeStream) Close() error { return nil }

func (s *fakeStream) sentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

type fakeTranscriber struct {
	stream *fakeStream
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Start(ctx context.Context, config repositories.AudioConfig) (repositories.TranscriberStream, error) {
	return f.stream, nil
}

func speakerFixture(t *testing.T, store *fakeStore) (*SpeakerProducer, *fakeTranscriber, *StatusPublisher) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	status := NewStatusPublisher(logger)
	transcriber := &fakeTranscriber{stream: &fakeStream{results: make(chan repositories.Transcript, 16)}}
	producer := NewSpeakerProducer(store, transcriber, status, "room-1", "speaker-1", logger)
	return producer, transcriber, status
}

func TestSpeakerPushesFinalTranscripts(t *testing.T) {
	store := &fakeStore{}
	producer, transcriber, status := speakerFixture(t, store)
	source := newFakeCapture()

	if err := producer.Start(context.Background(), source, repositories.AudioConfig{SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}
	defer producer.Stop()

	if status.Status() != entities.StatusRecording {
		t.Errorf("Expected recording status, got %s", status.Status())
	}

	transcriber.stream.results <- repositories.Transcript{Text: "hel", Final: false}
	transcriber.stream.results <- repositories.Transcript{Text: "hello", Final: true}
	transcriber.stream.results <- repositories.Transcript{Text: "  ", Final: true}
	transcriber.stream.results <- repositories.Transcript{Text: "world", Final: true}

	waitFor(t, func() bool { return len(store.pushedSegments()) == 2 })

	pushed := store.pushedSegments()
	if pushed[0].Text != "hello" || pushed[1].Text != "world" {
		t.Errorf("Expected only final non-empty transcripts, got %v", pushed)
	}
	// cumulative text grows across segments
	if pushed[0].FullText != "hello" || pushed[1].FullText != "hello world" {
		t.Errorf("Unexpected cumulative text: %q, %q", pushed[0].FullText, pushed[1].FullText)
	}
	for _, seg := range pushed {
		if seg.RoomID != "room-1" || seg.AuthorID != "speaker-1" {
			t.Errorf("Segment missing room or author: %+v", seg)
		}
		if seg.ID == "" || seg.CreatedAt.IsZero() {
			t.Error("Expected generated id and timestamp")
		}
	}
}

func TestSpeakerForwardsFrames(t *testing.T) {
	store := &fakeStore{}
	producer, transcriber, _ := speakerFixture(t, store)
	source := newFakeCapture()

	if err := producer.Start(context.Background(), source, repositories.AudioConfig{SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}
	defer producer.Stop()

	source.frames <- []byte{1, 2}
	source.frames <- []byte{3, 4}

	waitFor(t, func() bool { return len(transcriber.stream.sentFrames()) == 2 })
}

func TestSpeakerStopReturnsToIdle(t *testing.T) {
	store := &fakeStore{}
	producer, _, status := speakerFixture(t, store)
	source := newFakeCapture()

	if err := producer.Start(context.Background(), source, repositories.AudioConfig{SampleRate: 16000}); err != nil {
		t.Fatal(err)
	}
	producer.Stop()

	if producer.Running() {
		t.Error("Expected producer stopped")
	}
	if status.Status() != entities.StatusIdle {
		t.Errorf("Expected idle status, got %s", status.Status())
	}
	waitFor(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.closed
	})
}

func TestSpeakerStartTwiceFails(t *testing.T) {
	store := &fakeStore{}
	producer, _, _ := speakerFixture(t, store)

	if err := producer.Start(context.Background(), newFakeCapture(), repositories.AudioConfig{}); err != nil {
		t.Fatal(err)
	}
	defer producer.Stop()

	if err := producer.Start(context.Background(), newFakeCapture(), repositories.AudioConfig{}); err == nil {
		t.Error("Expected second start to fail")
	}
}
