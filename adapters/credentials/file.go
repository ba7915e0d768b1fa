package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/repositories"
)

const seedEnv = "ORB_API_KEYS"

// FileStore keeps the rotating credential pool in a JSON file next to the
// settings. When the file does not exist yet the pool is seeded from the
// ORB_API_KEYS environment variable (comma separated).
type FileStore struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	creds []repositories.Credential
}

var _ repositories.CredentialStore = (*FileStore)(nil)

// NewFileStore loads the pool from disk, seeding from the environment on
// first run.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	s := &FileStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.creds); err != nil {
			return nil, fmt.Errorf("failed to parse credential file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		s.creds = seedFromEnv()
		if len(s.creds) > 0 {
			if err := s.persistLocked(); err != nil {
				return nil, err
			}
			logger.Info("Credential pool seeded from environment", zap.Int("credentials", len(s.creds)))
		}
	default:
		return nil, fmt.Errorf("failed to read credential file %s: %w", path, err)
	}

	for _, cred := range s.creds {
		warnIfExpiring(cred, logger)
	}
	return s, nil
}

// List returns the pool in rotation order.
func (s *FileStore) List(ctx context.Context) ([]repositories.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repositories.Credential(nil), s.creds...), nil
}

// Append adds one credential to the end of the pool and persists.
func (s *FileStore) Append(ctx context.Context, credential repositories.Credential) error {
	if credential.Key == "" {
		return fmt.Errorf("credential key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.creds {
		if existing.Key == credential.Key {
			return fmt.Errorf("credential already in pool")
		}
	}

	if credential.Label == "" {
		credential.Label = fmt.Sprintf("key-%d", len(s.creds)+1)
	}
	if credential.AddedAt.IsZero() {
		credential.AddedAt = time.Now().UTC()
	}
	warnIfExpiring(credential, s.logger)

	s.creds = append(s.creds, credential)
	if err := s.persistLocked(); err != nil {
		s.creds = s.creds[:len(s.creds)-1]
		return err
	}

	s.logger.Info("Credential appended", zap.String("label", credential.Label))
	return nil
}

func (s *FileStore) persistLocked() error {
	data, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

func seedFromEnv() []repositories.Credential {
	raw := os.Getenv(seedEnv)
	if raw == "" {
		return nil
	}

	var creds []repositories.Credential
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		creds = append(creds, repositories.Credential{
			Key:     key,
			Label:   fmt.Sprintf("key-%d", len(creds)+1),
			AddedAt: time.Now().UTC(),
		})
	}
	return creds
}

// warnIfExpiring logs when a JWT-shaped key carries an exp claim in the
// past or the near future. Signature verification is neither possible nor
// needed here.
func warnIfExpiring(cred repositories.Credential, logger *zap.Logger) {
	if strings.Count(cred.Key, ".") != 2 {
		return
	}

	token, _, err := jwt.NewParser().ParseUnverified(cred.Key, jwt.MapClaims{})
	if err != nil {
		return
	}
	expiry, err := token.Claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return
	}

	remaining := time.Until(expiry.Time)
	switch {
	case remaining <= 0:
		logger.Warn("Credential token is expired",
			zap.String("label", cred.Label),
			zap.Time("expired_at", expiry.Time))
	case remaining < 7*24*time.Hour:
		logger.Warn("Credential token expires soon",
			zap.String("label", cred.Label),
			zap.Duration("remaining", remaining))
	}
}
