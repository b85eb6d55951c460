package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aidoctor/internal/config"
)

func TestSupabase_UploadDownload(t *testing.T) {
	objects := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-key", r.Header.Get("Authorization"))
		key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/")
		switch r.Method {
		case "POST":
			assert.Equal(t, "true", r.Header.Get("x-upsert"))
			assert.Equal(t, "audio/mpeg", r.Header.Get("Content-Type"))
			b, _ := io.ReadAll(r.Body)
			objects[key] = string(b)
		case "GET":
			v, ok := objects[key]
			if !ok {
				http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
				return
			}
			w.Write([]byte(v))
		case "DELETE":
			delete(objects, key)
		}
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL+"/", "svc-key")
	ctx := context.Background()

	require.NoError(t, s.Upload(ctx, "voice-responses", "responses/abc.mp3", strings.NewReader("ID3"), 3, "audio/mpeg"))
	assert.Equal(t, "ID3", objects["voice-responses/responses/abc.mp3"])

	rc, err := s.Download(ctx, "voice-responses", "responses/abc.mp3")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "ID3", string(b))

	require.NoError(t, s.Delete(ctx, "voice-responses", "responses/abc.mp3"))
	_, err = s.Download(ctx, "voice-responses", "responses/abc.mp3")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestSupabase_UploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket missing", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "k")
	err := s.Upload(context.Background(), "b", "p.mp3", strings.NewReader("x"), 1, "audio/mpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSupabase_PublicURL(t *testing.T) {
	s := NewSupabaseStorage("https://proj.supabase.co", "k")
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/public/voice-responses/responses/a.mp3",
		s.GetPublicURL("voice-responses", "/responses/a.mp3"))
}

func TestNew_Disabled(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = New(context.Background(), config.StorageConfig{Backend: "gcs"})
	assert.Error(t, err)
}
