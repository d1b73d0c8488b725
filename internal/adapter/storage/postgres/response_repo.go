package postgres

import (
	"context"
	"fmt"

	"survey-public-api/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ResponseRepo implements ports.ResponseRepository.
type ResponseRepo struct {
	pool Pool
}

// NewResponseRepo creates a new ResponseRepo.
func NewResponseRepo(pool Pool) *ResponseRepo {
	return &ResponseRepo{pool: pool}
}

// Create inserts a response. Answers are stored as JSONB.
func (r *ResponseRepo) Create(ctx context.Context, resp *domain.Response) error {
	query := `INSERT INTO responses (id, survey_id, answers, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, resp.ID, resp.SurveyID, []byte(resp.Answers), resp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

// ListBySurvey returns one page of a survey's responses, newest first.
func (r *ResponseRepo) ListBySurvey(ctx context.Context, surveyID uuid.UUID, limit, offset int) ([]domain.Response, int64, error) {
	responses, total, err := countAndList(ctx, r.pool,
		`SELECT COUNT(*) FROM responses WHERE survey_id = $1`,
		`SELECT id, survey_id, answers, created_at FROM responses WHERE survey_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		func(rows pgx.Rows) (domain.Response, error) {
			var resp domain.Response
			var answers []byte
			err := rows.Scan(&resp.ID, &resp.SurveyID, &answers, &resp.CreatedAt)
			resp.Answers = answers
			return resp, err
		},
		[]any{surveyID}, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list responses: %w", err)
	}
	return responses, total, nil
}
