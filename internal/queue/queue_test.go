package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/aidoctor/internal/config"
)

func TestHandlersRegistry_Dispatch(t *testing.T) {
	reg := NewHandlersRegistry()

	var got ArtifactArchivePayload
	reg.Register(TypeArtifactArchive, asynq.HandlerFunc(func(_ context.Context, task *asynq.Task) error {
		return json.Unmarshal(task.Payload(), &got)
	}))

	data, err := json.Marshal(ArtifactArchivePayload{SessionID: "s1", Path: "/tmp/r.mp3", ContentType: "audio/mpeg"})
	require.NoError(t, err)

	require.NoError(t, reg.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeArtifactArchive, data)))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "/tmp/r.mp3", got.Path)
}

func TestHandlersRegistry_PropagatesErrors(t *testing.T) {
	reg := NewHandlersRegistry()
	reg.Register(TypeArtifactArchive, asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
		return errors.New("upload failed")
	}))

	err := reg.Mux().ProcessTask(context.Background(), asynq.NewTask(TypeArtifactArchive, nil))
	assert.EqualError(t, err, "upload failed")
}

func TestRedisOpt(t *testing.T) {
	opt := RedisOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, "redis:6379", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
}
