package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// LocalTTSConfig holds configuration for the local Piper TTS backend.
type LocalTTSConfig struct {
	PiperBinPath string // default: "piper"
	ModelPath    string // required: path to the .onnx voice model
}

// LocalTTS synthesizes speech using the Piper binary via subprocess.
// Voice selection and speed are controlled via the model file, not runtime flags.
type LocalTTS struct {
	cfg LocalTTSConfig
}

// NewLocalTTS creates a LocalTTS backed by a local Piper binary.
func NewLocalTTS(cfg LocalTTSConfig) *LocalTTS {
	if cfg.PiperBinPath == "" {
		cfg.PiperBinPath = "piper"
	}
	return &LocalTTS{cfg: cfg}
}

func (l *LocalTTS) Name() string { return "local-piper" }

// Synthesize pipes text into Piper via stdin and returns the WAV file it writes.
func (l *LocalTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if l.cfg.ModelPath == "" {
		return nil, fmt.Errorf("piper model path is required (set TTS_LOCAL_PIPER_MODEL)")
	}

	out, err := os.CreateTemp("", "piper-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create piper output: %w", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	cmd := exec.CommandContext(ctx, l.cfg.PiperBinPath, "--model", l.cfg.ModelPath, "--output_file", out.Name())
	cmd.Stdin = strings.NewReader(req.Input)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper failed: %w (stderr: %s)", err, stderr.String())
	}

	audio, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, fmt.Errorf("read piper output: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("piper produced no audio")
	}

	return &SynthesisResult{
		Audio:       audio,
		ContentType: "audio/wav",
	}, nil
}
