package triage

import (
	"fmt"

	"github.com/nikhilbhutani/aidoctor/internal/multimodal"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/tts"
	"github.com/nikhilbhutani/aidoctor/internal/session"
)

// NoImageResponse is returned as the narrative when no image was uploaded.
const NoImageResponse = "No image provided for analysis. Please upload a medical image for evaluation."

// StageStatus tags a StageOutcome.
type StageStatus int

const (
	StageSkipped StageStatus = iota
	StageOK
	StageDegraded
)

func (s StageStatus) String() string {
	switch s {
	case StageOK:
		return "ok"
	case StageDegraded:
		return "degraded"
	default:
		return "skipped"
	}
}

// StageOutcome is the result of one pipeline stage: Skipped, OK(Text) or Degraded(Reason).
type StageOutcome struct {
	Status StageStatus
	Text   string
	Reason error
}

func Skipped() StageOutcome              { return StageOutcome{Status: StageSkipped} }
func OK(text string) StageOutcome        { return StageOutcome{Status: StageOK, Text: text} }
func Degraded(reason error) StageOutcome { return StageOutcome{Status: StageDegraded, Reason: reason} }

// Effective is the text later stages consume; only OK carries any.
func (o StageOutcome) Effective() string {
	if o.Status == StageOK {
		return o.Text
	}
	return ""
}

// Result aggregates the outcome of every stage of one analysis.
type Result struct {
	SessionID        session.ID
	Transcription    StageOutcome
	Analysis         StageOutcome
	Vision           *multimodal.VisionResponse
	Synthesis        *tts.Outcome
	SynthesisErr     error
	HasAudioResponse bool
}

// SpeechToText renders the transcription stage for clients.
func (r *Result) SpeechToText() string {
	switch r.Transcription.Status {
	case StageOK:
		return r.Transcription.Text
	case StageDegraded:
		return fmt.Sprintf("Audio processing failed: %v", r.Transcription.Reason)
	default:
		return ""
	}
}

// DoctorResponse renders the analysis stage for clients.
func (r *Result) DoctorResponse() string {
	switch r.Analysis.Status {
	case StageOK:
		return r.Analysis.Text
	case StageDegraded:
		return fmt.Sprintf("Image analysis failed: %v", r.Analysis.Reason)
	default:
		return NoImageResponse
	}
}

// ConfigurationError means a mandatory credential is missing; nothing was attempted.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return e.Key + " not configured"
}
