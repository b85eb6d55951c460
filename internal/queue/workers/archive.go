package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/aidoctor/internal/artifact"
	"github.com/nikhilbhutani/aidoctor/internal/queue"
	"github.com/nikhilbhutani/aidoctor/internal/session"
	"github.com/nikhilbhutani/aidoctor/internal/storage"
)

// ArchiveKey is the object key a session's response audio is stored under.
func ArchiveKey(id session.ID, ext string) string {
	return "responses/" + id.String() + ext
}

// ArchiveWorker copies synthesized responses from the staging directory into
// object storage and records the key in the artifact registry.
type ArchiveWorker struct {
	storage  storage.Storage
	bucket   string
	registry artifact.Registry
}

func NewArchiveWorker(store storage.Storage, bucket string, registry artifact.Registry) *ArchiveWorker {
	return &ArchiveWorker{
		storage:  store,
		bucket:   bucket,
		registry: registry,
	}
}

func (w *ArchiveWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.ArtifactArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	id, err := session.Parse(payload.SessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	slog.Info("archiving artifact", "session_id", id, "path", payload.Path)

	f, err := os.Open(payload.Path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("artifact file gone: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}

	key := ArchiveKey(id, filepath.Ext(payload.Path))
	if err := w.storage.Upload(ctx, w.bucket, key, f, info.Size(), payload.ContentType); err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}

	if err := w.registry.SetArchiveKey(ctx, id, key); err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			// Registry entry expired; the object is still archived under a predictable key.
			slog.Warn("artifact no longer registered", "session_id", id, "key", key)
			return nil
		}
		return fmt.Errorf("record archive key: %w", err)
	}

	slog.Info("artifact archived", "session_id", id, "key", key, "bytes", info.Size())
	return nil
}
