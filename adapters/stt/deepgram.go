package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/repositories"
)

const deepgramListenURL = "wss://api.deepgram.com/v1/listen"

// DeepgramTranscriber implements Transcriber over Deepgram's realtime
// listen websocket with the nova-2 model.
type DeepgramTranscriber struct {
	apiKey  string
	baseURL string
	logger  *zap.Logger
}

var _ repositories.Transcriber = (*DeepgramTranscriber)(nil)

func NewDeepgramTranscriber(apiKey string, logger *zap.Logger) (*DeepgramTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	return &DeepgramTranscriber{
		apiKey:  apiKey,
		baseURL: deepgramListenURL,
		logger:  logger,
	}, nil
}

func (d *DeepgramTranscriber) Name() string { return "deepgram" }

// Start dials the listen endpoint. Authentication rides in the websocket
// subprotocol, which is the documented browser-compatible scheme.
func (d *DeepgramTranscriber) Start(ctx context.Context, config repositories.AudioConfig) (repositories.TranscriberStream, error) {
	endpoint, err := d.listenURL(config)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{Subprotocols: []string{"token", d.apiKey}}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial deepgram: %w", err)
	}

	d.logger.Info("Deepgram transcription started",
		zap.Int("sample_rate", config.SampleRate),
		zap.String("language", config.Language))

	s := &deepgramStream{
		conn:    conn,
		results: make(chan repositories.Transcript, 8),
		logger:  d.logger,
	}
	go s.receive()
	return s, nil
}

func (d *DeepgramTranscriber) listenURL(config repositories.AudioConfig) (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid listen URL: %w", err)
	}

	query := url.Values{}
	query.Set("model", "nova-2")
	query.Set("encoding", "linear16")
	query.Set("smart_format", "true")
	query.Set("interim_results", "true")
	if config.SampleRate > 0 {
		query.Set("sample_rate", strconv.Itoa(config.SampleRate))
	}
	if config.Language != "" {
		query.Set("language", config.Language)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

type deepgramStream struct {
	conn    *websocket.Conn
	results chan repositories.Transcript
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

// deepgramMessage is the subset of the realtime response we consume.
type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream is closed")
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

func (s *deepgramStream) Results() <-chan repositories.Transcript {
	return s.results
}

func (s *deepgramStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// CloseStream tells the server to flush the final transcript
	s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	return s.conn.Close()
}

func (s *deepgramStream) receive() {
	defer close(s.results)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Warn("Deepgram stream closed", zap.Error(err))
			}
			return
		}

		transcript, ok := parseDeepgramMessage(payload)
		if !ok {
			continue
		}
		s.results <- transcript
	}
}

// parseDeepgramMessage extracts a transcript from one realtime message.
// Metadata frames and empty alternatives are skipped.
func parseDeepgramMessage(payload []byte) (repositories.Transcript, bool) {
	var msg deepgramMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return repositories.Transcript{}, false
	}
	if msg.Type != "" && msg.Type != "Results" {
		return repositories.Transcript{}, false
	}
	if len(msg.Channel.Alternatives) == 0 {
		return repositories.Transcript{}, false
	}
	text := msg.Channel.Alternatives[0].Transcript
	if text == "" {
		return repositories.Transcript{}, false
	}
	return repositories.Transcript{Text: text, Final: msg.IsFinal}, true
}
