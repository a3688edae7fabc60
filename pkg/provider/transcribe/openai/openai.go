// Package openai provides a transcriber backed by the OpenAI audio
// transcription API (Whisper models).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quastler/openfloor/pkg/provider/transcribe"
)

// Transcriber implements transcribe.Transcriber using the OpenAI API.
type Transcriber struct {
	client   oai.Client
	model    oai.AudioModel
	language string
}

// config holds optional configuration for the transcriber.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL, e.g. to point at an
// OpenAI-compatible local server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the ISO-639-1 language hint (e.g. "en", "de"). Empty
// lets the service auto-detect.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI-backed Transcriber.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: string(oai.AudioModelWhisper1)}
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

	return &Transcriber{
		client:   oai.NewClient(reqOpts...),
		model:    oai.AudioModel(cfg.model),
		language: cfg.language,
	}, nil
}

// Transcribe implements transcribe.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, clip transcribe.Clip) (transcribe.Result, error) {
	if len(clip.Data) == 0 {
		return transcribe.Result{}, nil
	}

	params := oai.AudioTranscriptionNewParams{
		Model: t.model,
		File:  oai.File(bytes.NewReader(clip.Data), fileName(clip.ContentType), clip.ContentType),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return transcribe.Result{}, fmt.Errorf("openai: transcribe: %w", err)
	}
	return transcribe.Result{Text: strings.TrimSpace(resp.Text)}, nil
}

// fileName picks an upload filename whose extension matches the clip's MIME
// type; the service uses the extension to select a decoder.
func fileName(contentType string) string {
	switch contentType {
	case "audio/webm":
		return "utterance.webm"
	case "audio/ogg", "audio/opus":
		return "utterance.ogg"
	case "audio/mpeg", "audio/mp3":
		return "utterance.mp3"
	case "audio/mp4":
		return "utterance.mp4"
	case "audio/wav", "audio/x-wav", "audio/pcm":
		return "utterance.wav"
	default:
		return "utterance.bin"
	}
}

// Compile-time assertion that Transcriber implements transcribe.Transcriber.
var _ transcribe.Transcriber = (*Transcriber)(nil)
