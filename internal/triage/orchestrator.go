// Package triage runs one analysis request through transcription, image
// analysis and speech synthesis, turning stage failures into text.
package triage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/audit"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/stt"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/tts"
	"github.com/nikhilbhutani/aidoctor/internal/queue"
	"github.com/nikhilbhutani/aidoctor/internal/session"
	"github.com/nikhilbhutani/aidoctor/internal/staging"
)

// Upload is one optional input file. A nil *Upload means the field was absent.
type Upload struct {
	Filename string
	Body     io.Reader
}

type Request struct {
	Audio *Upload
	Image *Upload
}

type Transcriber interface {
	Transcribe(ctx context.Context, req stt.TranscriptionRequest) (*stt.TranscriptionResponse, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, req multimodal.VisionRequest) (*multimodal.VisionResponse, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, write tts.WriteFunc) (*tts.Outcome, error)
	SynthesizeFallback(ctx context.Context, text string, write tts.WriteFunc) (*tts.Outcome, error)
}

// Archiver schedules a copy of a response artifact into object storage.
type Archiver interface {
	EnqueueArtifactArchive(ctx context.Context, payload queue.ArtifactArchivePayload) error
}

// Config holds the values resolved from the environment at startup.
type Config struct {
	VisionCredential string
	VisionKeyName    string
	VisionModel      string
	SystemPrompt     string
	STTModel         string
	Language         string
}

type Deps struct {
	Stager      *staging.Stager
	Transcriber Transcriber
	Analyzer    Analyzer
	Synthesizer Synthesizer
	Registry    artifact.Registry
	Recorder    audit.Recorder // optional
	Archiver    Archiver       // optional
}

type Orchestrator struct {
	cfg  Config
	deps Deps
}

func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if deps.Recorder == nil {
		deps.Recorder = audit.NopRecorder{}
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Handle runs the pipeline. Only a missing credential or a staging area that
// can't be created returns an error; every stage failure lands in the Result.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	if o.cfg.VisionCredential == "" {
		return nil, &ConfigurationError{Key: o.cfg.VisionKeyName}
	}

	start := time.Now()
	id := session.New()
	area, err := o.deps.Stager.Open(id)
	if err != nil {
		return nil, fmt.Errorf("open staging area: %w", err)
	}

	log := slog.With("session_id", id)
	res := &Result{
		SessionID:     id,
		Transcription: Skipped(),
		Analysis:      Skipped(),
	}

	if req.Audio != nil {
		res.Transcription = o.transcribe(ctx, area, req.Audio)
		if res.Transcription.Status == StageDegraded {
			log.Warn("transcription degraded", "error", res.Transcription.Reason)
		}
	}

	if req.Image != nil {
		res.Analysis, res.Vision = o.analyze(ctx, area, req.Image, res.Transcription.Effective())
		if res.Analysis.Status == StageDegraded {
			log.Warn("image analysis degraded", "error", res.Analysis.Reason)
		}
	}

	if res.Analysis.Status == StageOK {
		o.synthesize(ctx, area, res)
	}

	log.Info("analysis complete",
		"transcription", res.Transcription.Status.String(),
		"analysis", res.Analysis.Status.String(),
		"has_audio", res.HasAudioResponse,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	o.record(ctx, res, time.Since(start))
	return res, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, area *staging.Area, up *Upload) StageOutcome {
	media, err := area.Stage(staging.KindAudio, up.Body)
	if err != nil {
		return Degraded(err)
	}

	tr, err := o.deps.Transcriber.Transcribe(ctx, stt.TranscriptionRequest{
		FilePath: media.Path,
		Language: o.cfg.Language,
		Model:    o.cfg.STTModel,
	})
	if err != nil {
		return Degraded(err)
	}
	return OK(tr.Text)
}

func (o *Orchestrator) analyze(ctx context.Context, area *staging.Area, up *Upload, transcript string) (StageOutcome, *multimodal.VisionResponse) {
	media, err := area.Stage(staging.KindImage, up.Body)
	if err != nil {
		return Degraded(err), nil
	}

	resp, err := o.deps.Analyzer.Analyze(ctx, multimodal.VisionRequest{
		Prompt: o.cfg.SystemPrompt + transcript,
		Image:  multimodal.ImageInput{FilePath: media.Path, MimeType: media.MIME},
		Model:  o.cfg.VisionModel,
	})
	if err != nil {
		return Degraded(err), nil
	}
	return OK(resp.Content), resp
}

// synthesize never touches res.Analysis; a failure only clears HasAudioResponse.
func (o *Orchestrator) synthesize(ctx context.Context, area *staging.Area, res *Result) {
	log := slog.With("session_id", res.SessionID)

	out, err := o.deps.Synthesizer.Synthesize(ctx, res.Analysis.Text, writeTo(area, staging.KindResponse))
	if err != nil {
		res.SynthesisErr = err
		log.Error("speech synthesis failed", "error", err)
		return
	}

	res.Synthesis = out
	res.HasAudioResponse = staging.Exists(out.Path)
	if !res.HasAudioResponse {
		return
	}

	a := artifact.Artifact{
		SessionID:   res.SessionID,
		Kind:        staging.KindResponse,
		Path:        out.Path,
		ContentType: out.ContentType,
		Provider:    out.Provider,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.deps.Registry.Put(ctx, a); err != nil {
		log.Error("failed to register artifact", "error", err)
		return
	}

	if o.deps.Archiver != nil {
		if err := o.deps.Archiver.EnqueueArtifactArchive(ctx, queue.ArtifactArchivePayload{
			SessionID:   res.SessionID.String(),
			Path:        out.Path,
			ContentType: out.ContentType,
		}); err != nil {
			log.Warn("failed to enqueue archive", "error", err)
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, res *Result, elapsed time.Duration) {
	entry := audit.Analysis{
		SessionID:           res.SessionID.String(),
		TranscriptionStatus: res.Transcription.Status.String(),
		AnalysisStatus:      res.Analysis.Status.String(),
		SpeechToText:        res.SpeechToText(),
		DoctorResponse:      res.DoctorResponse(),
		HasAudio:            res.HasAudioResponse,
		LatencyMs:           int(elapsed.Milliseconds()),
	}
	if res.Vision != nil {
		entry.VisionProvider = res.Vision.Provider
		entry.VisionModel = res.Vision.Model
		entry.InputTokens = res.Vision.InputTokens
		entry.CostUSD = res.Vision.CostUSD
	}
	if res.Synthesis != nil {
		entry.SynthesisProvider = res.Synthesis.Provider
		entry.SynthesisTier = string(res.Synthesis.Tier)
	}

	if err := o.deps.Recorder.RecordAnalysis(ctx, entry); err != nil {
		slog.Warn("failed to record analysis", "session_id", res.SessionID, "error", err)
	}
}

// writeTo persists synthesized audio as a file of the given kind in area.
func writeTo(area *staging.Area, kind staging.Kind) tts.WriteFunc {
	return func(ext string, audio []byte) (string, error) {
		return area.WriteFile(kind, ext, audio)
	}
}
