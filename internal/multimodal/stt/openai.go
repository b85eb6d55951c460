package stt

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISTTConfig holds configuration for an OpenAI-compatible Whisper backend
// (OpenAI itself, Groq, or a self-hosted server).
type OpenAISTTConfig struct {
	APIKey   string
	BaseURL  string // default: "https://api.openai.com/v1"
	Model    string // default: "whisper-1"
	Language string
	// NoAuth skips the credential check for servers that need none.
	NoAuth bool
}

// OpenAISTT transcribes audio through the Whisper transcription endpoint.
type OpenAISTT struct {
	cfg    OpenAISTTConfig
	client *openai.Client
}

// NewOpenAISTT creates an OpenAISTT with sensible defaults applied.
func NewOpenAISTT(cfg OpenAISTTConfig) *OpenAISTT {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.HTTPClient = &http.Client{Timeout: 300 * time.Second}

	return &OpenAISTT{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (o *OpenAISTT) Name() string { return "openai-whisper" }

// Transcribe uploads the audio file and returns the recognized text.
func (o *OpenAISTT) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResponse, error) {
	if !o.cfg.NoAuth && o.cfg.APIKey == "" {
		return nil, &TranscriptionError{Provider: o.Name(), Err: ErrMissingCredential}
	}

	model := req.Model
	if model == "" {
		model = o.cfg.Model
	}
	language := req.Language
	if language == "" {
		language = o.cfg.Language
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: req.FilePath,
		Prompt:   req.Prompt,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, &TranscriptionError{Provider: o.Name(), Err: fmt.Errorf("create transcription: %w", err)}
	}

	return &TranscriptionResponse{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}
