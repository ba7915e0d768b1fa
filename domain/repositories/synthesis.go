package repositories

import (
	"context"
	"errors"

	"github.com/orbvoice/orb/audio"
)

// SynthesisRequest carries one turn to the translation+synthesis provider.
type SynthesisRequest struct {
	Text         string
	Language     string // target language name or code
	Voice        string // provider voice identifier
	Instructions string // optional free-text context appended to the system prompt
}

// Synthesizer translates text and renders it as speech in one provider
// call. A nil error with an empty clip means the provider produced nothing
// to play; the turn still completes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*audio.Clip, error)
}

// FailureKind classifies synthesis failures for the retry policy.
type FailureKind string

const (
	// FailureQuota means the provider signaled rate limiting; the caller
	// should rotate credentials and retry the same turn once.
	FailureQuota FailureKind = "quota_exceeded"

	// FailureTransient covers network-level errors worth a plain retry.
	FailureTransient FailureKind = "transient_network"

	// FailureFatal covers missing credentials, rejected requests and
	// undecodable payloads. The turn is abandoned.
	FailureFatal FailureKind = "fatal"
)

// SynthesisError wraps a provider failure with its classification.
type SynthesisError struct {
	Kind FailureKind
	Err  error
}

func (e *SynthesisError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Classify returns the failure kind of err, defaulting to FailureFatal for
// errors that carry no classification.
func Classify(err error) FailureKind {
	var se *SynthesisError
	if errors.As(err, &se) {
		return se.Kind
	}
	return FailureFatal
}
