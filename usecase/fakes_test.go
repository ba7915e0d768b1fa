package usecase

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

// fakeClock is a manually advanced clock so scheduling logic runs without
// wall-clock timers.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, &fakeWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var remaining []*fakeWaiter
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()
}

func (c *fakeClock) waiterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// fakeSink records when each clip started on the fake timeline.
type fakeSink struct {
	mu      sync.Mutex
	rate    int
	clock   *fakeClock
	starts  []sinkStart
	stopped int
}

type sinkStart struct {
	clip *audio.Clip
	at   time.Time
}

func newFakeSink(rate int, clock *fakeClock) *fakeSink {
	return &fakeSink{rate: rate, clock: clock}
}

func (s *fakeSink) SampleRate() int { return s.rate }

func (s *fakeSink) Start(clip *audio.Clip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts = append(s.starts, sinkStart{clip: clip, at: s.clock.Now()})
	return nil
}

func (s *fakeSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) startTimes() []sinkStart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkStart(nil), s.starts...)
}

// fakeStore serves scripted poll responses and records pushes.
type fakeStore struct {
	mu        sync.Mutex
	newBatch  [][]entities.RemoteSegment
	latest    []string
	fetchErr  error
	fetches   int
	pushed    []entities.RemoteSegment
	excludeds []string
}

func (s *fakeStore) FetchNew(ctx context.Context, roomID string, since time.Time, excludeAuthor string) ([]entities.RemoteSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	s.excludeds = append(s.excludeds, excludeAuthor)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.newBatch) == 0 {
		return nil, nil
	}
	batch := s.newBatch[0]
	s.newBatch = s.newBatch[1:]
	// honor the cursor the way a real backend would
	var out []entities.RemoteSegment
	for _, seg := range batch {
		if seg.CreatedAt.After(since) && (excludeAuthor == "" || seg.AuthorID != excludeAuthor) {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (s *fakeStore) FetchLatest(ctx context.Context, roomID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	if len(s.latest) == 0 {
		return "", nil
	}
	value := s.latest[0]
	if len(s.latest) > 1 {
		s.latest = s.latest[1:]
	}
	return value, nil
}

func (s *fakeStore) Push(ctx context.Context, segment entities.RemoteSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pushed = append(s.pushed, segment)
	return nil
}

func (s *fakeStore) RegisterParticipant(ctx context.Context, participantID string) error {
	return nil
}

func (s *fakeStore) pushedSegments() []entities.RemoteSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.RemoteSegment(nil), s.pushed...)
}

// fakeSynth delegates to a function and tracks concurrent calls.
type fakeSynth struct {
	mu        sync.Mutex
	fn        func(req repositories.SynthesisRequest) (*audio.Clip, error)
	inFlight  int
	maxFlight int
	calls     []repositories.SynthesisRequest
	callDelay time.Duration
}

func (f *fakeSynth) Synthesize(ctx context.Context, req repositories.SynthesisRequest) (*audio.Clip, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.calls = append(f.calls, req)
	delay := f.callDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	clip, err := f.fn(req)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return clip, err
}

func (f *fakeSynth) requests() []repositories.SynthesisRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repositories.SynthesisRequest(nil), f.calls...)
}

// toneClip builds a clip of the given duration at rate with a marker value
// in its first sample so tests can identify it.
func toneClip(marker int16, d time.Duration, rate int) *audio.Clip {
	samples := int(d.Seconds() * float64(rate))
	if samples < 1 {
		samples = 1
	}
	data := make([]byte, samples*2)
	binary.LittleEndian.PutUint16(data, uint16(marker))
	return &audio.Clip{Data: data, SampleRate: rate}
}

func clipMarker(clip *audio.Clip) int16 {
	if clip.Empty() {
		return -1
	}
	return int16(binary.LittleEndian.Uint16(clip.Data))
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
