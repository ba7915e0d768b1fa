package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/domain/repositories"
)

type fakeCredStore struct {
	mu    sync.Mutex
	creds []repositories.Credential
}

func (s *fakeCredStore) List(ctx context.Context) ([]repositories.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repositories.Credential(nil), s.creds...), nil
}

func (s *fakeCredStore) Append(ctx context.Context, credential repositories.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = append(s.creds, credential)
	return nil
}

func quotaErr() error {
	return &repositories.SynthesisError{Kind: repositories.FailureQuota, Err: errors.New("429")}
}

func TestRotationRetriesOnceOnQuota(t *testing.T) {
	store := &fakeCredStore{creds: []repositories.Credential{
		{Key: "k1", Label: "primary"},
		{Key: "k2", Label: "secondary"},
	}}

	byKey := map[string]*fakeSynth{
		"k1": {fn: func(repositories.SynthesisRequest) (*audio.Clip, error) { return nil, quotaErr() }},
		"k2": {fn: func(repositories.SynthesisRequest) (*audio.Clip, error) { return toneClip(2, 0, 24000), nil }},
	}
	factory := func(cred repositories.Credential) (repositories.Synthesizer, error) {
		return byKey[cred.Key], nil
	}

	r, err := NewRotatingSynthesizer(context.Background(), store, factory, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	clip, err := r.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "hi"})
	if err != nil {
		t.Fatalf("Expected rotation to recover, got %v", err)
	}
	if clipMarker(clip) != 2 {
		t.Error("Expected the second credential's client to serve the turn")
	}
	if len(byKey["k1"].requests()) != 1 || len(byKey["k2"].requests()) != 1 {
		t.Error("Expected exactly one attempt per credential")
	}

	// the rotated position sticks for the next turn
	if _, err := r.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "again"}); err != nil {
		t.Fatal(err)
	}
	if len(byKey["k2"].requests()) != 2 {
		t.Error("Expected the next turn to start on the rotated credential")
	}
}

func TestRotationSecondQuotaEscalatesToFatal(t *testing.T) {
	store := &fakeCredStore{creds: []repositories.Credential{
		{Key: "k1", Label: "primary"},
		{Key: "k2", Label: "secondary"},
	}}

	exhausted := &fakeSynth{fn: func(repositories.SynthesisRequest) (*audio.Clip, error) { return nil, quotaErr() }}
	factory := func(repositories.Credential) (repositories.Synthesizer, error) {
		return exhausted, nil
	}

	r, err := NewRotatingSynthesizer(context.Background(), store, factory, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "hi"})
	if repositories.Classify(err) != repositories.FailureFatal {
		t.Errorf("Expected fatal after exhausting the pool, got %v", err)
	}
	if len(exhausted.requests()) != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", len(exhausted.requests()))
	}
}

func TestRotationDoesNotRetryNonQuotaFailures(t *testing.T) {
	store := &fakeCredStore{creds: []repositories.Credential{
		{Key: "k1", Label: "primary"},
		{Key: "k2", Label: "secondary"},
	}}

	flaky := &fakeSynth{fn: func(repositories.SynthesisRequest) (*audio.Clip, error) {
		return nil, &repositories.SynthesisError{Kind: repositories.FailureTransient, Err: errors.New("reset")}
	}}
	factory := func(repositories.Credential) (repositories.Synthesizer, error) {
		return flaky, nil
	}

	r, err := NewRotatingSynthesizer(context.Background(), store, factory, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "hi"})
	if repositories.Classify(err) != repositories.FailureTransient {
		t.Errorf("Expected transient error passed through, got %v", err)
	}
	if len(flaky.requests()) != 1 {
		t.Error("Expected no retry for a transient failure")
	}
}

func TestRotationEmptyPoolIsFatal(t *testing.T) {
	store := &fakeCredStore{}
	factory := func(repositories.Credential) (repositories.Synthesizer, error) {
		t.Fatal("factory must not be called with an empty pool")
		return nil, nil
	}

	r, err := NewRotatingSynthesizer(context.Background(), store, factory, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Synthesize(context.Background(), repositories.SynthesisRequest{Text: "hi"})
	if repositories.Classify(err) != repositories.FailureFatal {
		t.Errorf("Expected fatal with empty pool, got %v", err)
	}
}

func TestRotationReloadPicksUpAppendedCredential(t *testing.T) {
	store := &fakeCredStore{creds: []repositories.Credential{{Key: "k1", Label: "primary"}}}

	served := &fakeSynth{fn: func(repositories.SynthesisRequest) (*audio.Clip, error) {
		return toneClip(1, 0, 24000), nil
	}}
	factory := func(repositories.Credential) (repositories.Synthesizer, error) {
		return served, nil
	}

	r, err := NewRotatingSynthesizer(context.Background(), store, factory, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Append(context.Background(), repositories.Credential{Key: "k2", Label: "added"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.mu.Lock()
	poolSize := len(r.creds)
	r.mu.Unlock()
	if poolSize != 2 {
		t.Errorf("Expected reloaded pool of 2, got %d", poolSize)
	}
}
