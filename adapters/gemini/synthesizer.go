package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/googleapis/gax-go/v2/apierror"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/orbvoice/orb/audio"
	"github.com/orbvoice/orb/domain/repositories"
)

const (
	defaultModel    = "gemini-2.5-flash-preview-tts"
	defaultVoice    = "Kore"
	defaultLanguage = "English"
)

// Synthesizer translates and voices one turn per call through the Gemini
// TTS API. Each instance is bound to a single API key; credential rotation
// happens above it.
type Synthesizer struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.Synthesizer = (*Synthesizer)(nil)

// NewSynthesizer creates a Gemini TTS client for the given API key.
func NewSynthesizer(ctx context.Context, apiKey string, logger *zap.Logger) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Synthesizer{
		client: client,
		logger: logger,
		model:  defaultModel,
	}, nil
}

// Synthesize sends one turn and decodes the inline PCM payload. An empty
// payload is returned as an empty clip, not an error.
func (s *Synthesizer) Synthesize(ctx context.Context, req repositories.SynthesisRequest) (*audio.Clip, error) {
	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(Instruction(req), genai.RoleUser),
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Text, genai.RoleUser)}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		kind := ClassifyProviderError(err)
		s.logger.Warn("Synthesis request failed",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, &repositories.SynthesisError{Kind: kind, Err: err}
	}

	clip, err := ClipFromResponse(resp)
	if err != nil {
		return nil, &repositories.SynthesisError{Kind: repositories.FailureFatal, Err: err}
	}
	if clip.Empty() {
		s.logger.Debug("Provider returned no audio", zap.Int("chars", len(req.Text)))
	}
	return clip, nil
}

// Instruction builds the interpreter system prompt for one turn.
func Instruction(req repositories.SynthesisRequest) string {
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a simultaneous interpreter. Translate the text you receive into %s and say only the spoken translation.", language)
	b.WriteString(" Do not add commentary, greetings or explanations.")
	if extra := strings.TrimSpace(req.Instructions); extra != "" {
		b.WriteString(" ")
		b.WriteString(extra)
	}
	return b.String()
}

// ClipFromResponse extracts the first inline audio part. A response with no
// audio parts yields an empty clip.
func ClipFromResponse(resp *genai.GenerateContentResponse) (*audio.Clip, error) {
	if resp == nil {
		return &audio.Clip{}, nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			clip, err := audio.DecodeInline(part.InlineData.Data, part.InlineData.MIMEType)
			if err != nil {
				return nil, fmt.Errorf("failed to decode audio payload: %w", err)
			}
			return clip, nil
		}
	}
	return &audio.Clip{}, nil
}

// ClassifyProviderError maps transport and API failures onto the synthesis
// failure taxonomy: 429 means the key's quota is spent, 5xx and network
// errors are worth retrying later, everything else is fatal for the turn.
func ClassifyProviderError(err error) repositories.FailureKind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return repositories.FailureQuota
		case apiErr.Code >= http.StatusInternalServerError:
			return repositories.FailureTransient
		default:
			return repositories.FailureFatal
		}
	}

	if ae, ok := apierror.FromError(err); ok {
		switch code := ae.HTTPCode(); {
		case code == http.StatusTooManyRequests:
			return repositories.FailureQuota
		case code >= http.StatusInternalServerError:
			return repositories.FailureTransient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return repositories.FailureTransient
	}
	return repositories.FailureFatal
}
