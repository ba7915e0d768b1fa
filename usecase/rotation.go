package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/domain/repositories"
)

// SynthesizerFactory builds a provider client bound to one credential.
type SynthesizerFactory func(credential repositories.Credential) (repositories.Synthesizer, error)

// RotatingSynthesizer wraps provider clients over an ordered credential
// pool. On a quota failure it advances to the next credential (wrapping
// around) and retries the same turn once; a second failure escalates to
// fatal. Only this type mutates the pool index.
type RotatingSynthesizer struct {
	store   repositories.CredentialStore
	factory SynthesizerFactory
	logger  *zap.Logger

	mu      sync.Mutex
	creds   []repositories.Credential
	index   int
	clients map[string]repositories.Synthesizer
}

var _ repositories.Synthesizer = (*RotatingSynthesizer)(nil)

// NewRotatingSynthesizer loads the credential pool from the store.
func NewRotatingSynthesizer(ctx context.Context, store repositories.CredentialStore, factory SynthesizerFactory, logger *zap.Logger) (*RotatingSynthesizer, error) {
	creds, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential pool: %w", err)
	}

	logger.Info("Credential pool loaded", zap.Int("credentials", len(creds)))

	return &RotatingSynthesizer{
		store:   store,
		factory: factory,
		logger:  logger,
		creds:   creds,
		clients: make(map[string]repositories.Synthesizer),
	}, nil
}

// Reload refreshes the pool from the store, keeping the current position
// when possible. Called after a credential is appended.
func (r *RotatingSynthesizer) Reload(ctx context.Context) error {
	creds, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload credential pool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds = creds
	if r.index >= len(creds) {
		r.index = 0
	}
	return nil
}

// Synthesize runs one turn through the current credential, rotating and
// retrying once on quota failure.
func (r *RotatingSynthesizer) Synthesize(ctx context.Context, req repositories.SynthesisRequest) (*audio.Clip, error) {
	client, label, err := r.current()
	if err != nil {
		return nil, &repositories.SynthesisError{Kind: repositories.FailureFatal, Err: err}
	}

	clip, err := client.Synthesize(ctx, req)
	if err == nil {
		return clip, nil
	}
	if repositories.Classify(err) != repositories.FailureQuota {
		return nil, err
	}

	r.logger.Warn("Quota exceeded, rotating credential", zap.String("credential", label))
	client, label, rotateErr := r.rotate()
	if rotateErr != nil {
		return nil, &repositories.SynthesisError{Kind: repositories.FailureFatal, Err: rotateErr}
	}

	clip, err = client.Synthesize(ctx, req)
	if err == nil {
		return clip, nil
	}
	if repositories.Classify(err) == repositories.FailureQuota {
		// whole pool exhausted for this turn
		return nil, &repositories.SynthesisError{
			Kind: repositories.FailureFatal,
			Err:  fmt.Errorf("quota exceeded after rotation to %s: %w", label, err),
		}
	}
	return nil, err
}

func (r *RotatingSynthesizer) current() (repositories.Synthesizer, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clientLocked()
}

func (r *RotatingSynthesizer) rotate() (repositories.Synthesizer, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.creds) == 0 {
		return nil, "", fmt.Errorf("credential pool is empty")
	}
	r.index = (r.index + 1) % len(r.creds)
	return r.clientLocked()
}

func (r *RotatingSynthesizer) clientLocked() (repositories.Synthesizer, string, error) {
	if len(r.creds) == 0 {
		return nil, "", fmt.Errorf("credential pool is empty")
	}

	cred := r.creds[r.index]
	if client, ok := r.clients[cred.Key]; ok {
		return client, cred.Label, nil
	}

	client, err := r.factory(cred)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build client for %s: %w", cred.Label, err)
	}
	r.clients[cred.Key] = client
	return client, cred.Label, nil
}
