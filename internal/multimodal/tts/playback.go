package tts

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Player plays a finished audio file on the host.
type Player interface {
	Play(ctx context.Context, path string) error
}

// NopPlayer does nothing; servers use it.
type NopPlayer struct{}

func (NopPlayer) Play(context.Context, string) error { return nil }

// OSPlayer shells out to the platform's command-line audio player.
type OSPlayer struct {
	goos string
}

func NewOSPlayer() *OSPlayer {
	return &OSPlayer{goos: runtime.GOOS}
}

func (p *OSPlayer) Play(ctx context.Context, path string) error {
	name, args, err := playerCommand(p.goos, path)
	if err != nil {
		return err
	}
	if out, err := exec.CommandContext(ctx, name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, out)
	}
	return nil
}

func playerCommand(goos, path string) (string, []string, error) {
	switch goos {
	case "darwin":
		return "afplay", []string{path}, nil
	case "windows":
		return "powershell", []string{"-c", fmt.Sprintf(`(Start-Process -FilePath "%s")`, path)}, nil
	case "linux":
		return "aplay", []string{path}, nil
	default:
		return "", nil, fmt.Errorf("audio playback unsupported on %s", goos)
	}
}
