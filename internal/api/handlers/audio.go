package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/tts"
	"github.com/nikhilbhutani/aidoctor/internal/session"
	"github.com/nikhilbhutani/aidoctor/internal/triage"
)

// Speech produces and retrieves synthesized audio.
type Speech interface {
	Speak(ctx context.Context, text string) (*artifact.Artifact, error)
	Open(ctx context.Context, id session.ID) (*triage.Audio, error)
	NotFound(ctx context.Context) (*triage.Audio, error)
}

type AudioHandler struct {
	speech Speech
}

func NewAudioHandler(speech Speech) *AudioHandler {
	return &AudioHandler{speech: speech}
}

// Get serves GET /audio/{session_id}.
func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "session_id")

	// Ids that are not sessions can't match any artifact; they get the spoken
	// not-found phrase like any other miss.
	var audio *triage.Audio
	id, err := session.Parse(raw)
	if err != nil {
		slog.Info("audio requested for unknown session id", "session_id", raw)
		audio, err = h.speech.NotFound(r.Context())
	} else {
		audio, err = h.speech.Open(r.Context(), id)
	}
	if err != nil {
		slog.Error("audio retrieval failed", "session_id", raw, "error", err)
		writeError(w, http.StatusNotFound, "Audio not found: "+err.Error())
		return
	}
	defer audio.Body.Close()

	w.Header().Set("X-Audio-Source", string(audio.Source))
	streamAudio(w, audio.Body, audio.ContentType, "response_"+audio.SessionID.String())
}

// TextToSpeech serves POST /text-to-speech. Text comes from the "text" query
// parameter, a JSON body or a form field, in that order.
func (h *AudioHandler) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	text, err := requestText(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return
	}

	a, err := h.speech.Speak(r.Context(), text)
	if err != nil {
		if errors.Is(err, triage.ErrEmptyText) {
			writeError(w, http.StatusUnprocessableEntity, "text is required")
			return
		}
		slog.Error("text to speech failed", "error", err)
		writeError(w, http.StatusInternalServerError, "TTS error: "+err.Error())
		return
	}

	f, err := os.Open(a.Path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TTS error: "+err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("X-Session-ID", a.SessionID.String())
	streamAudio(w, f, a.ContentType, "tts_"+a.SessionID.String())
}

func requestText(r *http.Request) (string, error) {
	if t := r.URL.Query().Get("text"); t != "" {
		return t, nil
	}

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/json":
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("invalid request body")
		}
		return body.Text, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return "", fmt.Errorf("invalid multipart form")
		}
		return r.FormValue("text"), nil
	case "application/x-www-form-urlencoded":
		return r.PostFormValue("text"), nil
	}
	return "", nil
}

func streamAudio(w http.ResponseWriter, body io.Reader, contentType, name string) {
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filepath.Base(name+tts.ExtensionFor(contentType))))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("audio stream interrupted", "error", err)
	}
}
