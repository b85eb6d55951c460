package tts

import (
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/aidoctor/internal/config"
)

// NewFromConfig assembles the primary/fallback chain. A primary whose key is
// missing is left out so requests go straight to the fallback.
func NewFromConfig(cfg config.TTSConfig, logger *slog.Logger) (*FallbackSynthesizer, error) {
	var primary TTSProvider
	switch cfg.Primary {
	case "", "elevenlabs":
		if cfg.ElevenLabsKey != "" {
			primary = NewElevenLabsTTS(ElevenLabsConfig{
				APIKey:  cfg.ElevenLabsKey,
				VoiceID: cfg.ElevenLabsVoice,
				ModelID: cfg.ElevenLabsModel,
			})
		}
	case "openai":
		if cfg.OpenAIKey != "" {
			primary = NewOpenAITTS(OpenAITTSConfig{APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel})
		}
	default:
		return nil, fmt.Errorf("unsupported TTS primary %q (supported: elevenlabs, openai)", cfg.Primary)
	}

	var fallback TTSProvider
	switch cfg.Fallback {
	case "", "gtts":
		fallback = NewGoogleTranslateTTS(GoogleTranslateConfig{Language: cfg.Language})
	case "piper":
		fallback = NewLocalTTS(LocalTTSConfig{PiperBinPath: cfg.PiperBinPath, ModelPath: cfg.PiperModel})
	default:
		return nil, fmt.Errorf("unsupported TTS fallback %q (supported: gtts, piper)", cfg.Fallback)
	}

	opts := []Option{WithLogger(logger)}
	if cfg.Playback {
		opts = append(opts, WithPlayer(NewOSPlayer()))
	}
	return NewFallbackSynthesizer(primary, fallback, opts...), nil
}
