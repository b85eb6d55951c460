package stt

import (
	"fmt"

	"github.com/nikhilbhutani/aidoctor/internal/config"
)

// New builds the transcription backend selected by STT_BACKEND.
func New(cfg config.STTConfig) (STTProvider, error) {
	switch cfg.Backend {
	case "", "openai":
		return NewOpenAISTT(OpenAISTTConfig{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Language: cfg.Language,
		}), nil
	case "local":
		return NewLocalSTT(LocalSTTConfig{
			BaseURL:  cfg.LocalBaseURL,
			Model:    cfg.Model,
			Language: cfg.Language,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported STT backend %q (supported: openai, local)", cfg.Backend)
	}
}
