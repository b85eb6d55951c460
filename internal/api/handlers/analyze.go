package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/nikhilbhutani/aidoctor/internal/triage"
)

// Analyzer runs the triage pipeline.
type Analyzer interface {
	Handle(ctx context.Context, req triage.Request) (*triage.Result, error)
}

type AnalyzeHandler struct {
	analyzer       Analyzer
	maxUploadBytes int64
}

func NewAnalyzeHandler(analyzer Analyzer, maxUploadMB int) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, maxUploadBytes: int64(maxUploadMB) << 20}
}

type analyzeResponse struct {
	SpeechToText     string `json:"speech_to_text"`
	DoctorResponse   string `json:"doctor_response"`
	SessionID        string `json:"session_id"`
	HasAudioResponse bool   `json:"has_audio_response"`
	Status           string `json:"status"`
}

// Analyze accepts optional "audio" and "image" multipart fields.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req triage.Request

	if isMultipart(r) {
		if h.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
			return
		}
		defer r.MultipartForm.RemoveAll()

		audio, err := formUpload(r, "audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if audio != nil {
			defer audio.close()
			req.Audio = audio.upload
		}

		image, err := formUpload(r, "image")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if image != nil {
			defer image.close()
			req.Image = image.upload
		}
	}

	res, err := h.analyzer.Handle(r.Context(), req)
	if err != nil {
		var cfgErr *triage.ConfigurationError
		if errors.As(err, &cfgErr) {
			slog.Error("analysis rejected", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		slog.Error("analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Processing error: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		SpeechToText:     res.SpeechToText(),
		DoctorResponse:   res.DoctorResponse(),
		SessionID:        res.SessionID.String(),
		HasAudioResponse: res.HasAudioResponse,
		Status:           "success",
	})
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

type openUpload struct {
	upload *triage.Upload
	file   multipart.File
}

func (u *openUpload) close() { u.file.Close() }

// formUpload returns nil when the field is missing or empty.
func formUpload(r *http.Request, field string) (*openUpload, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if hdr.Size == 0 {
		f.Close()
		return nil, nil
	}
	return &openUpload{
		upload: &triage.Upload{Filename: hdr.Filename, Body: f},
		file:   f,
	}, nil
}
