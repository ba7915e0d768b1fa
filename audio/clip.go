package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"mime"
	"strconv"
	"time"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Clip is a decoded mono PCM16 little-endian buffer ready for scheduling.
type Clip struct {
	Data       []byte
	SampleRate int
}

// Empty reports whether the clip carries no samples. An empty synthesis
// result is a valid "nothing to play" outcome, not an error.
func (c *Clip) Empty() bool {
	return c == nil || len(c.Data) < 2
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.Empty() || c.SampleRate <= 0 {
		return 0
	}
	samples := len(c.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// Level returns the root-mean-square amplitude of the clip, normalized to
// 0..1. The widget UI animates from this.
func (c *Clip) Level() float64 {
	if c.Empty() {
		return 0
	}
	var sum float64
	samples := len(c.Data) / 2
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(c.Data[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}

// DecodeInline decodes a provider audio payload into a Clip. Gemini returns
// raw PCM16 tagged "audio/L16;codec=pcm;rate=24000"; anything else is a
// decode failure for the turn.
func DecodeInline(data []byte, mimeType string) (*Clip, error) {
	if len(data) == 0 {
		return &Clip{}, nil
	}

	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return nil, fmt.Errorf("unparseable audio mime type %q: %w", mimeType, err)
	}
	if mediaType != "audio/l16" && mediaType != "audio/pcm" {
		return nil, fmt.Errorf("unsupported audio payload type %q", mediaType)
	}

	rate := 24000
	if r, ok := params["rate"]; ok {
		rate, err = strconv.Atoi(r)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid sample rate %q in mime type", r)
		}
	}

	if len(data)%2 != 0 {
		// PCM16 payloads are two bytes per sample; drop a trailing odd byte
		data = data[:len(data)-1]
	}

	return &Clip{Data: data, SampleRate: rate}, nil
}

// Resample converts the clip to targetRate. A clip already at the target
// rate is returned unchanged. A clip that cannot be converted is a decode
// failure; it must never be played at the wrong pitch.
func Resample(clip *Clip, targetRate int) (*Clip, error) {
	if clip.Empty() || clip.SampleRate == targetRate {
		return clip, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(clip.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler %d->%d: %w", clip.SampleRate, targetRate, err)
	}

	samples := len(clip.Data) / 2
	input := make([]float64, samples)
	for i := 0; i < samples; i++ {
		input[i] = float64(int16(binary.LittleEndian.Uint16(clip.Data[i*2:]))) / 32768.0
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	out := make([]byte, len(output)*2)
	for i, s := range output {
		v := int16(s * 32767.0)
		if s > 1.0 {
			v = math.MaxInt16
		} else if s < -1.0 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}

	return &Clip{Data: out, SampleRate: targetRate}, nil
}
