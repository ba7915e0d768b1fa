package audio

import "time"

// Sink is the audio output device the playback scheduler drives. The real
// implementation sits on top of oto; tests inject a fake so scheduling logic
// runs without audio hardware.
type Sink interface {
	// SampleRate is the fixed output rate of the device. Clips must be
	// resampled to it before Start.
	SampleRate() int

	// Start begins playback of the clip immediately and returns. The sink
	// owns the clip data until playback ends or Stop is called.
	Start(clip *Clip) error

	// Stop halts any in-flight playback immediately.
	Stop()

	// Close releases the audio device.
	Close() error
}

// Clock abstracts wall time so the scheduler is testable without real
// timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
