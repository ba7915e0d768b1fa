package repositories

import (
	"context"
	"time"
)

// Credential is one rotating provider API key.
type Credential struct {
	Key     string    `json:"key"`
	Label   string    `json:"label,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// CredentialStore holds the ordered pool of provider credentials the
// synthesis adapter rotates through on quota failure.
type CredentialStore interface {
	List(ctx context.Context) ([]Credential, error)
	Append(ctx context.Context, credential Credential) error
}
