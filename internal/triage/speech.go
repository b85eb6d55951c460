package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/session"
	"github.com/nikhilbhutani/aidoctor/internal/staging"
	"github.com/nikhilbhutani/aidoctor/internal/storage"
)

// NotFoundPhrase is spoken when a requested response can't be located.
const NotFoundPhrase = "Audio response not found. Please try again."

// ErrEmptyText is returned by Speak for blank input.
var ErrEmptyText = errors.New("text is required")

// Source says where served audio came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceArchive  Source = "archive"
	SourceFallback Source = "fallback"
)

// Audio is an open audio stream ready to be written to a client.
type Audio struct {
	Body        io.ReadCloser
	ContentType string
	Source      Source
	SessionID   session.ID
}

// SpeechService serves stored responses and ad-hoc synthesis.
type SpeechService struct {
	stager      *staging.Stager
	synthesizer Synthesizer
	registry    artifact.Registry
	archive     storage.Storage // optional
	bucket      string
}

func NewSpeechService(stager *staging.Stager, synth Synthesizer, registry artifact.Registry, archive storage.Storage, bucket string) *SpeechService {
	return &SpeechService{
		stager:      stager,
		synthesizer: synth,
		registry:    registry,
		archive:     archive,
		bucket:      bucket,
	}
}

// Speak synthesizes text into a new session's area. Each call produces a fresh file.
func (s *SpeechService) Speak(ctx context.Context, text string) (*artifact.Artifact, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	id := session.New()
	area, err := s.stager.Open(id)
	if err != nil {
		return nil, fmt.Errorf("open staging area: %w", err)
	}

	out, err := s.synthesizer.Synthesize(ctx, text, writeTo(area, staging.KindTTS))
	if err != nil {
		return nil, err
	}

	a := artifact.Artifact{
		SessionID:   id,
		Kind:        staging.KindTTS,
		Path:        out.Path,
		ContentType: out.ContentType,
		Provider:    out.Provider,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.registry.Put(ctx, a); err != nil {
		slog.Warn("failed to register tts artifact", "session_id", id, "error", err)
	}
	return &a, nil
}

// Open returns the audio for a session: the local file, then the archived
// copy, then a freshly synthesized NotFoundPhrase.
func (s *SpeechService) Open(ctx context.Context, id session.ID) (*Audio, error) {
	a, err := s.registry.Get(ctx, id)
	switch {
	case err == nil:
		if audio, ok := s.openStored(ctx, a); ok {
			return audio, nil
		}
	case errors.Is(err, artifact.ErrNotFound):
	default:
		slog.Warn("artifact lookup failed", "session_id", id, "error", err)
	}

	slog.Info("audio not found, synthesizing fallback phrase", "session_id", id)
	audio, err := s.notFoundAudio(ctx)
	if err != nil {
		return nil, err
	}
	audio.SessionID = id
	return audio, nil
}

// NotFound speaks NotFoundPhrase for a request that names no usable session.
func (s *SpeechService) NotFound(ctx context.Context) (*Audio, error) {
	return s.notFoundAudio(ctx)
}

func (s *SpeechService) openStored(ctx context.Context, a *artifact.Artifact) (*Audio, bool) {
	if staging.Exists(a.Path) {
		f, err := os.Open(a.Path)
		if err == nil {
			return &Audio{Body: f, ContentType: a.ContentType, Source: SourceLocal, SessionID: a.SessionID}, true
		}
		slog.Warn("failed to open artifact", "session_id", a.SessionID, "error", err)
	}

	if a.Archived() && s.archive != nil {
		rc, err := s.archive.Download(ctx, s.bucket, a.ArchiveKey)
		if err == nil {
			return &Audio{Body: rc, ContentType: a.ContentType, Source: SourceArchive, SessionID: a.SessionID}, true
		}
		slog.Warn("failed to download archived artifact", "session_id", a.SessionID, "key", a.ArchiveKey, "error", err)
	}
	return nil, false
}

func (s *SpeechService) notFoundAudio(ctx context.Context) (*Audio, error) {
	area, err := s.stager.Open(session.New())
	if err != nil {
		return nil, fmt.Errorf("open staging area: %w", err)
	}

	out, err := s.synthesizer.SynthesizeFallback(ctx, NotFoundPhrase, writeTo(area, staging.KindFallback))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(out.Path)
	if err != nil {
		return nil, fmt.Errorf("open fallback audio: %w", err)
	}
	return &Audio{Body: f, ContentType: out.ContentType, Source: SourceFallback, SessionID: area.Session}, nil
}
