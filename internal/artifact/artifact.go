// Package artifact tracks the audio files produced for each session so they
// can be served back by session id.
package artifact

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nikhilbhutani/aidoctor/internal/session"
	"github.com/nikhilbhutani/aidoctor/internal/staging"
)

// ErrNotFound is returned when no artifact is registered for a session.
var ErrNotFound = errors.New("artifact not found")

// Artifact is one synthesized audio file.
type Artifact struct {
	SessionID   session.ID   `json:"session_id"`
	Kind        staging.Kind `json:"kind"`
	Path        string       `json:"path"`
	ContentType string       `json:"content_type"`
	Provider    string       `json:"provider"`
	ArchiveKey  string       `json:"archive_key,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Archived reports whether a copy exists in object storage.
func (a *Artifact) Archived() bool { return a.ArchiveKey != "" }

// Registry maps sessions to their artifacts.
type Registry interface {
	Put(ctx context.Context, a Artifact) error
	Get(ctx context.Context, id session.ID) (*Artifact, error)
	SetArchiveKey(ctx context.Context, id session.ID, key string) error
}

// MemoryRegistry keeps artifacts in process memory. It is the default when
// Redis is not configured, so the archive worker can't update it.
type MemoryRegistry struct {
	mu    sync.RWMutex
	items map[session.ID]Artifact
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{items: make(map[session.ID]Artifact)}
}

func (r *MemoryRegistry) Put(_ context.Context, a Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.items[a.SessionID] = a
	r.mu.Unlock()
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id session.ID) (*Artifact, error) {
	r.mu.RLock()
	a, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *MemoryRegistry) SetArchiveKey(_ context.Context, id session.ID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	a.ArchiveKey = key
	r.items[id] = a
	return nil
}
