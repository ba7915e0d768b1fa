package stt

import (
	"context"
	"fmt"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/orbvoice/orb/domain/repositories"
)

// GoogleTranscriber implements Transcriber using Cloud Speech-to-Text
// streaming recognition. Credentials come from the ambient Google
// application default credentials.
type GoogleTranscriber struct {
	logger *zap.Logger
}

var _ repositories.Transcriber = (*GoogleTranscriber)(nil)

func NewGoogleTranscriber(logger *zap.Logger) *GoogleTranscriber {
	return &GoogleTranscriber{logger: logger}
}

func (g *GoogleTranscriber) Name() string { return "google" }

// Start opens a streaming recognition session configured for continuous
// speaker capture with interim results suppressed.
func (g *GoogleTranscriber) Start(ctx context.Context, config repositories.AudioConfig) (repositories.TranscriberStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open recognize stream: %w", err)
	}

	encoding, err := googleEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}

	language := config.Language
	if language == "" {
		language = "en-US"
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    language,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.logger.Info("Google transcription started",
		zap.Int("sample_rate", config.SampleRate),
		zap.String("language", language))

	s := &googleStream{
		client:  client,
		stream:  stream,
		results: make(chan repositories.Transcript, 8),
		logger:  g.logger,
	}
	go s.receive()
	return s, nil
}

type googleStream struct {
	client  *speech.Client
	stream  speechpb.Speech_StreamingRecognizeClient
	results chan repositories.Transcript
	logger  *zap.Logger
}

func (s *googleStream) Send(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	if err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: frame,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

func (s *googleStream) Results() <-chan repositories.Transcript {
	return s.results
}

func (s *googleStream) Close() error {
	err := s.stream.CloseSend()
	s.client.Close()
	return err
}

func (s *googleStream) receive() {
	defer close(s.results)

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			s.logger.Warn("Recognition stream closed", zap.Error(err))
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			s.results <- repositories.Transcript{
				Text:  result.Alternatives[0].Transcript,
				Final: result.IsFinal,
			}
		}
	}
}

func googleEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "", "LINEAR16", "WAV":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
