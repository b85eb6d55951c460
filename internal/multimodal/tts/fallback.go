package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Tier names which provider slot produced the audio.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// AttemptStatus is the result tag of one provider attempt.
type AttemptStatus int

const (
	Succeeded AttemptStatus = iota
	NeedsFallback
	Failed
)

func (s AttemptStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case NeedsFallback:
		return "needs_fallback"
	default:
		return "failed"
	}
}

// Attempt is what one tier returns. Reason is set unless Status is Succeeded;
// a primary that was never configured yields NeedsFallback with ErrPrimaryUnavailable.
type Attempt struct {
	Status   AttemptStatus
	Provider string
	Outcome  *Outcome
	Reason   error
}

// Outcome describes the persisted audio file.
type Outcome struct {
	Tier        Tier   `json:"tier"`
	Provider    string `json:"provider"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
}

// WriteFunc persists synthesized audio with the given extension and returns
// its path. It must not leave a partial file behind when it fails.
type WriteFunc func(ext string, audio []byte) (string, error)

// ErrPrimaryUnavailable marks a primary tier without a configured provider.
var ErrPrimaryUnavailable = errors.New("primary provider not configured")

// FallbackSynthesizer tries the primary provider and, on any failure or when
// it is not configured, the keyless fallback provider exactly once.
type FallbackSynthesizer struct {
	primary  TTSProvider
	fallback TTSProvider
	player   Player
	playback bool
	logger   *slog.Logger
}

type Option func(*FallbackSynthesizer)

// WithPlayer enables best-effort playback after a primary success.
func WithPlayer(p Player) Option {
	return func(s *FallbackSynthesizer) {
		s.player = p
		s.playback = p != nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *FallbackSynthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFallbackSynthesizer builds the chain. primary may be nil; fallback may not.
func NewFallbackSynthesizer(primary, fallback TTSProvider, opts ...Option) *FallbackSynthesizer {
	s := &FallbackSynthesizer{
		primary:  primary,
		fallback: fallback,
		player:   NopPlayer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PrimaryName returns the primary provider's name, or "" when none is configured.
func (s *FallbackSynthesizer) PrimaryName() string {
	if s.primary == nil {
		return ""
	}
	return s.primary.Name()
}

func (s *FallbackSynthesizer) FallbackName() string { return s.fallback.Name() }

// Synthesize converts text to audio and persists it through write.
func (s *FallbackSynthesizer) Synthesize(ctx context.Context, text string, write WriteFunc) (*Outcome, error) {
	first := s.tryPrimary(ctx, text, write)
	switch first.Status {
	case Succeeded:
		s.play(ctx, first.Outcome.Path)
		return first.Outcome, nil
	case NeedsFallback:
		if errors.Is(first.Reason, ErrPrimaryUnavailable) {
			s.logger.Debug("tts primary not configured, using fallback", "fallback", s.fallback.Name())
		} else {
			s.logger.Warn("tts primary failed, using fallback",
				"provider", first.Provider, "fallback", s.fallback.Name(), "error", first.Reason)
		}
	}

	return s.finish(s.tryFallback(ctx, text, write))
}

// SynthesizeFallback skips the primary tier entirely.
func (s *FallbackSynthesizer) SynthesizeFallback(ctx context.Context, text string, write WriteFunc) (*Outcome, error) {
	return s.finish(s.tryFallback(ctx, text, write))
}

func (s *FallbackSynthesizer) finish(a Attempt) (*Outcome, error) {
	if a.Status != Succeeded {
		return nil, &SynthesisError{Provider: a.Provider, Err: a.Reason}
	}
	return a.Outcome, nil
}

func (s *FallbackSynthesizer) tryPrimary(ctx context.Context, text string, write WriteFunc) Attempt {
	if s.primary == nil {
		return Attempt{Status: NeedsFallback, Reason: ErrPrimaryUnavailable}
	}
	a := s.attempt(ctx, s.primary, TierPrimary, text, write)
	if a.Status == Failed {
		a.Status = NeedsFallback
	}
	return a
}

func (s *FallbackSynthesizer) tryFallback(ctx context.Context, text string, write WriteFunc) Attempt {
	return s.attempt(ctx, s.fallback, TierFallback, text, write)
}

// attempt runs one provider and writes its audio. A write failure fails the attempt.
func (s *FallbackSynthesizer) attempt(ctx context.Context, p TTSProvider, tier Tier, text string, write WriteFunc) Attempt {
	res, err := p.Synthesize(ctx, SynthesisRequest{Input: text})
	if err == nil && (res == nil || len(res.Audio) == 0) {
		err = errors.New("provider returned no audio")
	}
	if err != nil {
		return Attempt{Status: Failed, Provider: p.Name(), Reason: err}
	}

	path, err := write(res.Extension(), res.Audio)
	if err != nil {
		return Attempt{Status: Failed, Provider: p.Name(), Reason: fmt.Errorf("write audio: %w", err)}
	}

	return Attempt{
		Status:   Succeeded,
		Provider: p.Name(),
		Outcome: &Outcome{
			Tier:        tier,
			Provider:    p.Name(),
			Path:        path,
			ContentType: res.ContentType,
		},
	}
}

func (s *FallbackSynthesizer) play(ctx context.Context, path string) {
	if !s.playback {
		return
	}
	if err := s.player.Play(ctx, path); err != nil {
		s.logger.Warn("audio playback failed", "path", path, "error", err)
	}
}
