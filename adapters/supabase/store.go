package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/entities"
	"github.com/orbvoice/orb/domain/repositories"
)

const (
	defaultTable             = "transcriptions"
	defaultParticipantsTable = "participants"
	defaultTimeout           = 10 * time.Second
)

// Config holds connection settings for a Supabase-style REST backend.
type Config struct {
	BaseURL           string // project URL, e.g. https://xyz.supabase.co
	APIKey            string
	Table             string // transcription rows table
	ParticipantsTable string
}

// Store implements TranscriptStore over the PostgREST endpoint that the
// shared room backend exposes.
type Store struct {
	baseURL           string
	apiKey            string
	table             string
	participantsTable string
	client            *http.Client
	logger            *zap.Logger
}

var _ repositories.TranscriptStore = (*Store)(nil)

type row struct {
	ID        string    `json:"id,omitempty"`
	RoomID    string    `json:"room_id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Text      string    `json:"text"`
	FullText  string    `json:"full_text,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NewStore creates a REST store. The API key doubles as the bearer token,
// which is how anon-key access works on this backend.
func NewStore(config Config, logger *zap.Logger) (*Store, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("supabase base URL is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	table := config.Table
	if table == "" {
		table = defaultTable
	}
	participantsTable := config.ParticipantsTable
	if participantsTable == "" {
		participantsTable = defaultParticipantsTable
	}

	return &Store{
		baseURL:           config.BaseURL,
		apiKey:            config.APIKey,
		table:             table,
		participantsTable: participantsTable,
		client:            &http.Client{Timeout: defaultTimeout},
		logger:            logger,
	}, nil
}

// FetchNew returns rows created after the cursor, oldest first. Author
// exclusion happens server side so polls stay cheap.
func (s *Store) FetchNew(ctx context.Context, roomID string, since time.Time, excludeAuthor string) ([]entities.RemoteSegment, error) {
	query := url.Values{}
	query.Set("room_id", "eq."+roomID)
	query.Set("created_at", "gt."+since.UTC().Format(time.RFC3339Nano))
	query.Set("order", "created_at.asc")
	if excludeAuthor != "" {
		query.Set("author_id", "neq."+excludeAuthor)
	}

	var rows []row
	if err := s.get(ctx, s.table, query, &rows); err != nil {
		return nil, err
	}

	segments := make([]entities.RemoteSegment, 0, len(rows))
	for _, r := range rows {
		segments = append(segments, entities.RemoteSegment{
			ID:        r.ID,
			RoomID:    r.RoomID,
			AuthorID:  r.AuthorID,
			Text:      r.Text,
			FullText:  r.FullText,
			CreatedAt: r.CreatedAt,
		})
	}
	entities.SortSegments(segments)
	return segments, nil
}

// FetchLatest returns the newest row's cumulative text for the room.
func (s *Store) FetchLatest(ctx context.Context, roomID string) (string, error) {
	query := url.Values{}
	query.Set("room_id", "eq."+roomID)
	query.Set("order", "created_at.desc")
	query.Set("limit", "1")

	var rows []row
	if err := s.get(ctx, s.table, query, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	if rows[0].FullText != "" {
		return rows[0].FullText, nil
	}
	return rows[0].Text, nil
}

// Push inserts one transcription row.
func (s *Store) Push(ctx context.Context, segment entities.RemoteSegment) error {
	body := row{
		ID:        segment.ID,
		RoomID:    segment.RoomID,
		AuthorID:  segment.AuthorID,
		Text:      segment.Text,
		FullText:  segment.FullText,
		CreatedAt: segment.CreatedAt,
	}
	return s.post(ctx, s.table, body, "return=minimal")
}

// RegisterParticipant upserts the participant row so repeated session
// starts do not conflict.
func (s *Store) RegisterParticipant(ctx context.Context, participantID string) error {
	body := map[string]string{"id": participantID}
	return s.post(ctx, s.participantsTable, body, "resolution=merge-duplicates")
}

func (s *Store) get(ctx context.Context, table string, query url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", s.baseURL, table, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(errorBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *Store) post(ctx context.Context, table string, body interface{}, prefer string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	s.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(errorBody))
	}
	s.logger.Debug("Row written", zap.String("table", table), zap.Int("status", resp.StatusCode))
	return nil
}

func (s *Store) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}
