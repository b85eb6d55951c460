package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/auth"
	"github.com/nikhilbhutani/aidoctor/internal/config"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/stt"
	"github.com/nikhilbhutani/aidoctor/internal/multimodal/tts"
	"github.com/nikhilbhutani/aidoctor/internal/staging"
	"github.com/nikhilbhutani/aidoctor/internal/triage"
)

var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

type noSTT struct{}

func (noSTT) Transcribe(context.Context, stt.TranscriptionRequest) (*stt.TranscriptionResponse, error) {
	return &stt.TranscriptionResponse{Text: "it itches"}, nil
}

type cannedVision struct{}

func (cannedVision) Analyze(context.Context, multimodal.VisionRequest) (*multimodal.VisionResponse, error) {
	return &multimodal.VisionResponse{Content: "With what I see, I think you have a mild rash.", Provider: "groq"}, nil
}

type echoTTS struct{}

func (echoTTS) Name() string { return "gtts" }
func (echoTTS) Synthesize(_ context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	return &tts.SynthesisResult{Audio: []byte("mp3:" + req.Input), ContentType: "audio/mpeg"}, nil
}

func newServer(t *testing.T, credential string, mutate func(*config.Config)) http.Handler {
	t.Helper()
	stager, err := staging.New(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.MaxUploadMB = 25
	cfg.Server.RateLimitRPM = 1000
	if mutate != nil {
		mutate(cfg)
	}

	reg := artifact.NewMemoryRegistry()
	synth := tts.NewFallbackSynthesizer(nil, echoTTS{})
	orch := triage.NewOrchestrator(triage.Config{
		VisionCredential: credential,
		VisionKeyName:    "GROQ_API_KEY",
		SystemPrompt:     "prompt ",
	}, triage.Deps{
		Stager:      stager,
		Transcriber: noSTT{},
		Analyzer:    cannedVision{},
		Synthesizer: synth,
		Registry:    reg,
	})

	return NewRouter(cfg, Services{
		Analyzer: orch,
		Speech:   triage.NewSpeechService(stager, synth, reg, nil, ""),
	}).Setup()
}

func imageRequest(t *testing.T) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "rash.png")
	require.NoError(t, err)
	fw.Write(pngPixel)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnalyze_ImageOnlyEndToEnd(t *testing.T) {
	srv := newServer(t, "gsk-test", nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, imageRequest(t))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		SpeechToText     string `json:"speech_to_text"`
		DoctorResponse   string `json:"doctor_response"`
		SessionID        string `json:"session_id"`
		HasAudioResponse bool   `json:"has_audio_response"`
		Status           string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "success", out.Status)
	assert.NotEmpty(t, out.DoctorResponse)
	assert.True(t, out.HasAudioResponse)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/audio/"+out.SessionID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp3:"+out.DoctorResponse, rec.Body.String())
}

func TestAnalyze_MissingCredentialEndToEnd(t *testing.T) {
	srv := newServer(t, "", nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, imageRequest(t))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Contains(t, out["detail"], "GROQ_API_KEY not configured")
}

func TestAudio_UnknownSessionGetsFallbackPhrase(t *testing.T) {
	srv := newServer(t, "gsk-test", nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/audio/6ba7b810-9dad-41d1-80b4-00c04fd430c8", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp3:"+triage.NotFoundPhrase, rec.Body.String())
}

func TestAudio_NonSessionIDGetsFallbackPhrase(t *testing.T) {
	srv := newServer(t, "gsk-test", nil)

	for _, id := range []string{"abc123", "..%2Fetc%2Fpasswd"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("GET", "/audio/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code, id)
		assert.Equal(t, "fallback", rec.Header().Get("X-Audio-Source"), id)
		assert.Equal(t, "mp3:"+triage.NotFoundPhrase, rec.Body.String(), id)
	}
}

func TestHealthRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newServer(t, "", nil).ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestJWTProtectsMutatingRoutes(t *testing.T) {
	srv := newServer(t, "gsk-test", func(c *config.Config) { c.Auth.JWTSecret = "s3cret" })

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("POST", "/text-to-speech?text=hi", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "clinic",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/text-to-speech?text=hi", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp3:hi", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStaticFrontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))

	srv := newServer(t, "gsk-test", func(c *config.Config) { c.Server.StaticDir = dir })

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "app")
}
