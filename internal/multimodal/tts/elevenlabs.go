package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ElevenLabsConfig holds configuration for the ElevenLabs backend.
type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string // default: "https://api.elevenlabs.io"
	VoiceID      string // default: "FGY2WhTYpPnrIDTdsKH5"
	ModelID      string // default: "eleven_turbo_v2"
	OutputFormat string // default: "mp3_22050_32"
}

// ElevenLabsTTS synthesizes speech with the ElevenLabs text-to-speech API.
type ElevenLabsTTS struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

func NewElevenLabsTTS(cfg ElevenLabsConfig) *ElevenLabsTTS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = "FGY2WhTYpPnrIDTdsKH5"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_22050_32"
	}
	return &ElevenLabsTTS{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *ElevenLabsTTS) Name() string { return "elevenlabs" }

// Synthesize converts text to MP3. req.Voice overrides the configured voice ID.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = e.cfg.VoiceID
	}

	data, err := json.Marshal(map[string]string{
		"text":     req.Input,
		"model_id": e.cfg.ModelID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s",
		e.cfg.BaseURL, url.PathEscape(voice), url.QueryEscape(e.cfg.OutputFormat))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs failed (status %d): %s", resp.StatusCode, string(b))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned no audio")
	}

	return &SynthesisResult{Audio: audio, ContentType: "audio/mpeg"}, nil
}
