package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/audit"
	"github.com/nikhilbhutani/aidoctor/internal/session"
	"github.com/nikhilbhutani/aidoctor/internal/triage"
)

type fakeAnalyzer struct {
	got triage.Request
	res *triage.Result
	err error
}

func (f *fakeAnalyzer) Handle(_ context.Context, req triage.Request) (*triage.Result, error) {
	f.got = req
	if req.Audio != nil {
		io.ReadAll(req.Audio.Body)
	}
	return f.res, f.err
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		fw.Write(data)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReady(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"redis": pinger{}, "database": nil}).Ready(rec, httptest.NewRequest("GET", "/api/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"redis":"ok"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	NewHealthHandler(map[string]Pinger{"redis": pinger{err: errors.New("refused")}}).Ready(rec, httptest.NewRequest("GET", "/api/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy: refused")
}

func TestAnalyze_ResponseShape(t *testing.T) {
	id := session.New()
	fa := &fakeAnalyzer{res: &triage.Result{
		SessionID:        id,
		Transcription:    triage.OK("it hurts"),
		Analysis:         triage.OK("With what I see, I think you have a bruise."),
		HasAudioResponse: true,
	}}
	h := NewAnalyzeHandler(fa, 25)

	body, ct := multipartBody(t, map[string][]byte{"audio": []byte("ID3data"), "image": []byte("img")})
	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"speech_to_text": "it hurts",
		"doctor_response": "With what I see, I think you have a bruise.",
		"session_id": "`+id.String()+`",
		"has_audio_response": true,
		"status": "success"
	}`, rec.Body.String())
	assert.NotNil(t, fa.got.Audio)
	assert.NotNil(t, fa.got.Image)
}

func TestAnalyze_EmptyFileIsAbsent(t *testing.T) {
	fa := &fakeAnalyzer{res: &triage.Result{SessionID: session.New()}}
	h := NewAnalyzeHandler(fa, 25)

	body, ct := multipartBody(t, map[string][]byte{"audio": {}})
	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Analyze(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, fa.got.Audio)
	assert.Nil(t, fa.got.Image)

	out := decode(t, rec)
	assert.Equal(t, triage.NoImageResponse, out["doctor_response"])
	assert.Equal(t, "", out["speech_to_text"])
	assert.Equal(t, false, out["has_audio_response"])
}

func TestAnalyze_NonMultipartMeansNoInputs(t *testing.T) {
	fa := &fakeAnalyzer{res: &triage.Result{SessionID: session.New()}}
	rec := httptest.NewRecorder()
	NewAnalyzeHandler(fa, 25).Analyze(rec, httptest.NewRequest("POST", "/api/analyze", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, fa.got.Audio)
}

func TestAnalyze_MalformedMultipart(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader("garbage"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rec := httptest.NewRecorder()
	NewAnalyzeHandler(&fakeAnalyzer{}, 25).Analyze(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "invalid multipart form")
}

func TestAnalyze_TooLarge(t *testing.T) {
	body, ct := multipartBody(t, map[string][]byte{"image": bytes.Repeat([]byte("x"), 2<<20)})
	req := httptest.NewRequest("POST", "/api/analyze", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	NewAnalyzeHandler(&fakeAnalyzer{}, 1).Analyze(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyze_ConfigurationError(t *testing.T) {
	fa := &fakeAnalyzer{err: &triage.ConfigurationError{Key: "GROQ_API_KEY"}}
	rec := httptest.NewRecorder()
	NewAnalyzeHandler(fa, 25).Analyze(rec, httptest.NewRequest("POST", "/api/analyze", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "GROQ_API_KEY not configured", decode(t, rec)["detail"])
}

type fakeSpeech struct {
	dir      string
	audio    map[session.ID]string
	texts    []string
	notFound int
	err      error
}

func (f *fakeSpeech) Speak(_ context.Context, text string) (*artifact.Artifact, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	id := session.New()
	path := filepath.Join(f.dir, id.String()+".mp3")
	if err := os.WriteFile(path, []byte("mp3:"+text), 0o644); err != nil {
		return nil, err
	}
	return &artifact.Artifact{SessionID: id, Path: path, ContentType: "audio/mpeg"}, nil
}

func (f *fakeSpeech) Open(_ context.Context, id session.ID) (*triage.Audio, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.audio[id]; ok {
		return &triage.Audio{Body: io.NopCloser(strings.NewReader(v)), ContentType: "audio/mpeg", Source: triage.SourceLocal}, nil
	}
	return f.NotFound(context.Background())
}

func (f *fakeSpeech) NotFound(context.Context) (*triage.Audio, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.notFound++
	return &triage.Audio{Body: io.NopCloser(strings.NewReader("fallback")), ContentType: "audio/mpeg", Source: triage.SourceFallback, SessionID: session.New()}, nil
}

func audioRouter(s Speech) http.Handler {
	r := chi.NewRouter()
	h := NewAudioHandler(s)
	r.Get("/audio/{session_id}", h.Get)
	r.Post("/text-to-speech", h.TextToSpeech)
	return r
}

func TestAudio_Get(t *testing.T) {
	id := session.New()
	srv := audioRouter(&fakeSpeech{audio: map[session.ID]string{id: "stored-audio"}})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/audio/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "local", rec.Header().Get("X-Audio-Source"))
	assert.Equal(t, "stored-audio", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest("GET", "/audio/"+session.New().String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get("X-Audio-Source"))
}

func TestAudio_GetMalformedIDSpeaksFallbackPhrase(t *testing.T) {
	fs := &fakeSpeech{}
	rec := httptest.NewRecorder()
	audioRouter(fs).ServeHTTP(rec, httptest.NewRequest("GET", "/audio/abc123", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get("X-Audio-Source"))
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "fallback", rec.Body.String())
	assert.Equal(t, 1, fs.notFound)
}

func TestAudio_GetMalformedIDFallbackFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	audioRouter(&fakeSpeech{err: errors.New("offline")}).ServeHTTP(rec, httptest.NewRequest("GET", "/audio/abc123", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "Audio not found")
}

func TestAudio_GetFallbackFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	audioRouter(&fakeSpeech{err: errors.New("offline")}).ServeHTTP(rec, httptest.NewRequest("GET", "/audio/"+session.New().String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTextToSpeech_Sources(t *testing.T) {
	fs := &fakeSpeech{dir: t.TempDir()}
	srv := audioRouter(fs)

	reqs := []*http.Request{
		httptest.NewRequest("POST", "/text-to-speech?text=from+query", nil),
		func() *http.Request {
			r := httptest.NewRequest("POST", "/text-to-speech", strings.NewReader(`{"text":"from json"}`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}(),
		func() *http.Request {
			r := httptest.NewRequest("POST", "/text-to-speech", strings.NewReader("text=from+form"))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r
		}(),
	}

	for _, req := range reqs {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get("X-Session-ID"))
	}
	assert.Equal(t, []string{"from query", "from json", "from form"}, fs.texts)
}

func TestTextToSpeech_IndependentSessions(t *testing.T) {
	srv := audioRouter(&fakeSpeech{dir: t.TempDir()})

	ids := map[string]bool{}
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest("POST", "/text-to-speech?text=same", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		ids[rec.Header().Get("X-Session-ID")] = true
	}
	assert.Len(t, ids, 2)
}

func TestTextToSpeech_MissingText(t *testing.T) {
	rec := httptest.NewRecorder()
	audioRouter(&fakeSpeech{}).ServeHTTP(rec, httptest.NewRequest("POST", "/text-to-speech", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTextToSpeech_Failure(t *testing.T) {
	rec := httptest.NewRecorder()
	audioRouter(&fakeSpeech{err: errors.New("both providers down")}).ServeHTTP(rec, httptest.NewRequest("POST", "/text-to-speech?text=hi", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "both providers down")
}

type fakeHistory struct {
	q audit.HistoryQuery
}

func (f *fakeHistory) ListAnalyses(_ context.Context, q audit.HistoryQuery) ([]audit.Analysis, error) {
	f.q = q
	return []audit.Analysis{{SessionID: "s1"}}, nil
}

func TestHistory_List(t *testing.T) {
	fh := &fakeHistory{}
	rec := httptest.NewRecorder()
	NewHistoryHandler(fh).List(rec, httptest.NewRequest("GET", "/api/analyses?limit=5&start_date=2026-01-01T00:00:00Z", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, fh.q.Limit)
	require.NotNil(t, fh.q.StartDate)
	assert.Equal(t, float64(1), decode(t, rec)["count"])

	rec = httptest.NewRecorder()
	NewHistoryHandler(fh).List(rec, httptest.NewRequest("GET", "/api/analyses?end_date=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
