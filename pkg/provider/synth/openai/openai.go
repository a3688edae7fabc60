// Package openai provides a synthesizer backed by the OpenAI audio speech
// API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quastler/openfloor/pkg/provider/synth"
)

const (
	defaultModel = "tts-1"
	defaultVoice = "alloy"
)

// Synthesizer implements synth.Synthesizer using the OpenAI API.
type Synthesizer struct {
	client oai.Client
	model  string
	format oai.AudioSpeechNewParamsResponseFormat
}

// config holds optional configuration for the synthesizer.
type config struct {
	baseURL string
	model   string
	format  string
	timeout time.Duration
}

// Option is a functional option for Synthesizer.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the speech model. Defaults to tts-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithFormat sets the audio response format ("mp3", "opus", "aac", "flac",
// "wav", "pcm"). Defaults to mp3.
func WithFormat(format string) Option {
	return func(c *config) { c.format = format }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI-backed Synthesizer.
func New(apiKey string, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel, format: "mp3"}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Synthesizer{
		client: oai.NewClient(reqOpts...),
		model:  cfg.model,
		format: oai.AudioSpeechNewParamsResponseFormat(cfg.format),
	}, nil
}

// Synthesize implements synth.Synthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice synth.Voice) (synth.Audio, error) {
	if text == "" {
		return synth.Audio{}, nil
	}
	id := voice.ID
	if id == "" {
		id = defaultVoice
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(s.model),
		Voice:          oai.AudioSpeechNewParamsVoice(id),
		Input:          text,
		ResponseFormat: s.format,
	}
	if voice.Speed > 0 {
		params.Speed = oai.Float(voice.Speed)
	}

	resp, err := s.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return synth.Audio{}, fmt.Errorf("openai: synthesize: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return synth.Audio{}, fmt.Errorf("openai: read audio: %w", err)
	}
	return synth.Audio{Data: data, ContentType: contentType(s.format)}, nil
}

// contentType maps a response format to its MIME type.
func contentType(format oai.AudioSpeechNewParamsResponseFormat) string {
	switch format {
	case "opus":
		return "audio/opus"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "wav":
		return "audio/wav"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/mpeg"
	}
}

// Compile-time assertion that Synthesizer implements synth.Synthesizer.
var _ synth.Synthesizer = (*Synthesizer)(nil)
