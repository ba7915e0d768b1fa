package repositories

import "context"

// AudioConfig describes the capture format fed into a transcriber.
type AudioConfig struct {
	SampleRate int
	Encoding   string // "LINEAR16", "WEBM_OPUS", ...
	Language   string
}

// Transcript is one recognition result from a streaming transcriber.
type Transcript struct {
	Text  string
	Final bool
}

// Transcriber is a streaming speech-to-text engine used in speaker mode.
// Engines are selected by name at session start.
type Transcriber interface {
	Name() string
	Start(ctx context.Context, config AudioConfig) (TranscriberStream, error)
}

// TranscriberStream is one live recognition stream. Send pushes captured
// audio frames; Results delivers transcripts until the stream closes.
type TranscriberStream interface {
	Send(frame []byte) error
	Results() <-chan Transcript
	Close() error
}
