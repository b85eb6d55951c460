package audit

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	sql  string
	args []any
	err  error
}

func (d *recordingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.sql, d.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), d.err
}

func (d *recordingDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.sql, d.args = sql, args
	return nil, d.err
}

func TestRecordAnalysis(t *testing.T) {
	db := &recordingDB{}
	svc := NewService(db)

	err := svc.RecordAnalysis(context.Background(), Analysis{
		SessionID:           "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		TranscriptionStatus: "ok",
		AnalysisStatus:      "ok",
		DoctorResponse:      "With what I see, I think you have a mild rash.",
		SynthesisProvider:   "gtts",
		SynthesisTier:       "fallback",
		HasAudio:            true,
	})
	require.NoError(t, err)

	assert.True(t, strings.Contains(db.sql, "INSERT INTO analyses"))
	require.Len(t, db.args, 13)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", db.args[0])
	assert.Equal(t, "gtts", db.args[9])
	assert.Equal(t, true, db.args[11])
}

func TestRecordAnalysis_Error(t *testing.T) {
	svc := NewService(&recordingDB{err: errors.New("connection refused")})
	err := svc.RecordAnalysis(context.Background(), Analysis{SessionID: "s"})
	assert.ErrorContains(t, err, "insert analysis s")
}

func TestListAnalyses_BuildsFilters(t *testing.T) {
	db := &recordingDB{err: errors.New("stop")}
	svc := NewService(db)

	_, err := svc.ListAnalyses(context.Background(), HistoryQuery{Limit: 1000, Offset: 10})
	require.Error(t, err)
	assert.Contains(t, db.sql, "ORDER BY created_at DESC LIMIT $1 OFFSET $2")
	assert.Equal(t, []any{50, 10}, db.args)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	assert.NoError(t, r.RecordAnalysis(context.Background(), Analysis{}))
}
