// Package staging persists uploaded media and synthesized audio to per-session
// directories on local disk.
//
// Files are never removed by this package; retention is left to the operator
// (tmp reaping, a cron job, or a dedicated volume).
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nikhilbhutani/aidoctor/internal/session"
)

// Kind names the role of a staged file and prefixes its file name.
type Kind string

const (
	KindAudio    Kind = "audio"
	KindImage    Kind = "image"
	KindResponse Kind = "response"
	KindTTS      Kind = "tts"
	KindFallback Kind = "fallback"
)

// defaultExt is used when content sniffing can't name a more specific extension.
var defaultExt = map[Kind]string{
	KindAudio: ".mp3",
	KindImage: ".jpg",
}

// MediaProcessingError reports a failure to persist or inspect an upload.
type MediaProcessingError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *MediaProcessingError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *MediaProcessingError) Unwrap() error { return e.Err }

// ErrEmptyUpload is returned when an upload carries no bytes.
var ErrEmptyUpload = errors.New("upload is empty")

// Stager hands out per-session areas under a root directory.
type Stager struct {
	root string
}

// New creates a Stager rooted at dir, or at <os temp dir>/aidoctor when dir is empty.
func New(dir string) (*Stager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "aidoctor")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	return &Stager{root: dir}, nil
}

func (s *Stager) Root() string { return s.root }

// Open creates (if needed) and returns the area for a session.
func (s *Stager) Open(id session.ID) (*Area, error) {
	dir := filepath.Join(s.root, id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session area: %w", err)
	}
	return &Area{Session: id, Dir: dir}, nil
}

// Area is the directory holding every file of one session.
type Area struct {
	Session session.ID
	Dir     string
}

// Media describes a staged file.
type Media struct {
	Path string
	MIME string
	Ext  string
	Size int64
}

// Path returns the location for a file of the given kind, e.g. response_<session>.mp3.
func (a *Area) Path(kind Kind, ext string) string {
	return filepath.Join(a.Dir, fmt.Sprintf("%s_%s%s", kind, a.Session, ext))
}

// Stage copies r to disk, sniffs its content type and names the file after
// the detected extension.
func (a *Area) Stage(kind Kind, r io.Reader) (*Media, error) {
	tmp := a.Path(kind, ".part")
	f, err := os.Create(tmp)
	if err != nil {
		return nil, &MediaProcessingError{Kind: kind, Op: "create", Err: err}
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return nil, &MediaProcessingError{Kind: kind, Op: "write", Err: err}
	}
	if n == 0 {
		os.Remove(tmp)
		return nil, &MediaProcessingError{Kind: kind, Op: "write", Err: ErrEmptyUpload}
	}

	mt, err := mimetype.DetectFile(tmp)
	if err != nil {
		os.Remove(tmp)
		return nil, &MediaProcessingError{Kind: kind, Op: "detect", Err: err}
	}

	ext := mt.Extension()
	if ext == "" {
		ext = defaultExt[kind]
	}

	final := a.Path(kind, ext)
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return nil, &MediaProcessingError{Kind: kind, Op: "rename", Err: err}
	}

	return &Media{
		Path: final,
		MIME: mt.String(),
		Ext:  ext,
		Size: n,
	}, nil
}

// WriteFile stores data produced by this service (synthesized audio) in the
// area. A failed write leaves nothing behind at the final path.
func (a *Area) WriteFile(kind Kind, ext string, data []byte) (string, error) {
	path := a.Path(kind, ext)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return "", &MediaProcessingError{Kind: kind, Op: "write", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", &MediaProcessingError{Kind: kind, Op: "rename", Err: err}
	}
	return path, nil
}

// Exists reports whether path is a regular, non-empty file.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
