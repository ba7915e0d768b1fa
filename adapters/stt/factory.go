package stt

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/repositories"
)

// NewTranscriber builds the named speech-to-text engine. Deepgram needs an
// API key; Google authenticates through application default credentials.
func NewTranscriber(engine, deepgramKey string, logger *zap.Logger) (repositories.Transcriber, error) {
	switch engine {
	case "deepgram":
		return NewDeepgramTranscriber(deepgramKey, logger)
	case "google":
		return NewGoogleTranscriber(logger), nil
	default:
		return nil, fmt.Errorf("unknown transcription engine: %s", engine)
	}
}
