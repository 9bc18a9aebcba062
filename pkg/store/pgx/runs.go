package pgx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"muhasibi/internal/util"
	"muhasibi/pkg/common"
	"muhasibi/pkg/store"
)

// AppendRun appends one finished run record. Insert-only: the hot path
// never reads this table and records are never updated.
func (s *CorpusStore) AppendRun(ctx context.Context, run store.RunRecord) error {
	responseJSON, err := json.Marshal(run.Response)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	stateJSON, err := json.Marshal(run.StateTrace)
	if err != nil {
		return fmt.Errorf("encode state trace: %w", err)
	}
	timingsJSON, err := json.Marshal(run.TimingsMs)
	if err != nil {
		return fmt.Errorf("encode timings: %w", err)
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.conn.Exec(ctx, `
		INSERT INTO ask_run (request_id, question, language, mode, response, retrieval_trace, state_trace, timings_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		run.RequestID,
		util.SanitizePostgresText(run.Question),
		run.Language,
		string(run.Mode),
		responseJSON,
		run.RetrievalTrace,
		stateJSON,
		timingsJSON,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// AppendFeedback appends one feedback record for a finished run.
func (s *CorpusStore) AppendFeedback(ctx context.Context, feedback store.FeedbackRecord) error {
	createdAt := feedback.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO ask_feedback (request_id, rating, tags, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		feedback.RequestID,
		feedback.Rating,
		feedback.Tags,
		util.SanitizePostgresText(feedback.Comment),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return nil
}

// GetRun fetches a stored run record by request ID.
func (s *CorpusStore) GetRun(ctx context.Context, requestID string) (*store.RunRecord, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT request_id, question, language, mode, response, retrieval_trace, state_trace, timings_ms, created_at
		FROM ask_run
		WHERE request_id = $1
	`, requestID)

	var run store.RunRecord
	var mode string
	var responseJSON, stateJSON, timingsJSON []byte
	err := row.Scan(&run.RequestID, &run.Question, &run.Language, &mode, &responseJSON, &run.RetrievalTrace, &stateJSON, &timingsJSON, &run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Mode = common.Mode(mode)
	if err := json.Unmarshal(responseJSON, &run.Response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &run.StateTrace); err != nil {
			return nil, fmt.Errorf("decode state trace: %w", err)
		}
	}
	if len(timingsJSON) > 0 {
		if err := json.Unmarshal(timingsJSON, &run.TimingsMs); err != nil {
			return nil, fmt.Errorf("decode timings: %w", err)
		}
	}
	return &run, nil
}
