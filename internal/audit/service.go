package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the history store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Analysis is one row of analysis history.
type Analysis struct {
	ID                  int64     `json:"id"`
	SessionID           string    `json:"session_id"`
	TranscriptionStatus string    `json:"transcription_status"`
	AnalysisStatus      string    `json:"analysis_status"`
	SpeechToText        string    `json:"speech_to_text"`
	DoctorResponse      string    `json:"doctor_response"`
	VisionProvider      string    `json:"vision_provider"`
	VisionModel         string    `json:"vision_model"`
	InputTokens         int       `json:"input_tokens"`
	CostUSD             float64   `json:"cost_usd"`
	SynthesisProvider   string    `json:"synthesis_provider"`
	SynthesisTier       string    `json:"synthesis_tier"`
	HasAudio            bool      `json:"has_audio"`
	LatencyMs           int       `json:"latency_ms"`
	CreatedAt           time.Time `json:"created_at"`
}

// Recorder persists finished analyses.
type Recorder interface {
	RecordAnalysis(ctx context.Context, a Analysis) error
}

// NopRecorder drops records; used when DATABASE_URL is unset.
type NopRecorder struct{}

func (NopRecorder) RecordAnalysis(context.Context, Analysis) error { return nil }

type Service struct {
	db DB
}

func NewService(db DB) *Service {
	return &Service{db: db}
}

func (s *Service) RecordAnalysis(ctx context.Context, a Analysis) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO analyses (session_id, transcription_status, analysis_status, speech_to_text, doctor_response,
		                       vision_provider, vision_model, input_tokens, cost_usd,
		                       synthesis_provider, synthesis_tier, has_audio, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (session_id) DO NOTHING`,
		a.SessionID, a.TranscriptionStatus, a.AnalysisStatus, a.SpeechToText, a.DoctorResponse,
		a.VisionProvider, a.VisionModel, a.InputTokens, a.CostUSD,
		a.SynthesisProvider, a.SynthesisTier, a.HasAudio, a.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", a.SessionID, err)
	}
	return nil
}

type HistoryQuery struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// ListAnalyses returns history newest first.
func (s *Service) ListAnalyses(ctx context.Context, q HistoryQuery) ([]Analysis, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}

	query := `SELECT id, session_id::text, transcription_status, analysis_status, speech_to_text, doctor_response,
			         vision_provider, vision_model, input_tokens, cost_usd::float8,
			         synthesis_provider, synthesis_tier, has_audio, latency_ms, created_at
			  FROM analyses WHERE TRUE`
	args := []any{}
	argIdx := 1

	if q.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.StartDate)
		argIdx++
	}
	if q.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *q.EndDate)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	analyses := []Analysis{}
	for rows.Next() {
		var a Analysis
		if err := rows.Scan(&a.ID, &a.SessionID, &a.TranscriptionStatus, &a.AnalysisStatus, &a.SpeechToText,
			&a.DoctorResponse, &a.VisionProvider, &a.VisionModel, &a.InputTokens, &a.CostUSD,
			&a.SynthesisProvider, &a.SynthesisTier, &a.HasAudio, &a.LatencyMs, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}
