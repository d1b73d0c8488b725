package postgres

import (
	"context"
	"errors"
	"fmt"

	"survey-public-api/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const surveyColumns = `id, owner_id, title, description, status, created_at, updated_at`

// SurveyRepo implements ports.SurveyRepository.
type SurveyRepo struct {
	pool Pool
}

// NewSurveyRepo creates a new SurveyRepo.
func NewSurveyRepo(pool Pool) *SurveyRepo {
	return &SurveyRepo{pool: pool}
}

func scanSurvey(row pgx.Row) (domain.Survey, error) {
	var s domain.Survey
	err := row.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Description, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// Create inserts a new survey.
func (r *SurveyRepo) Create(ctx context.Context, s *domain.Survey) error {
	query := `INSERT INTO surveys (` + surveyColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.OwnerID, s.Title, s.Description, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}
	return nil
}

// GetByID fetches a survey by its UUID.
func (r *SurveyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE id = $1`
	s, err := scanSurvey(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get survey by id: %w", err)
	}
	return &s, nil
}

// ListByOwner returns one page of an owner's surveys, newest first, plus the total count.
func (r *SurveyRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Survey, int64, error) {
	surveys, total, err := countAndList(ctx, r.pool,
		`SELECT COUNT(*) FROM surveys WHERE owner_id = $1`,
		`SELECT `+surveyColumns+` FROM surveys WHERE owner_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		func(rows pgx.Rows) (domain.Survey, error) { return scanSurvey(rows) },
		[]any{ownerID}, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list surveys: %w", err)
	}
	return surveys, total, nil
}

// Update writes the mutable fields of a survey.
func (r *SurveyRepo) Update(ctx context.Context, s *domain.Survey) error {
	query := `UPDATE surveys SET title=$1, description=$2, status=$3, updated_at=$4 WHERE id=$5`
	_, err := r.pool.Exec(ctx, query, s.Title, s.Description, s.Status, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update survey: %w", err)
	}
	return nil
}

// Delete removes a survey. Responses cascade.
func (r *SurveyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM surveys WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	return nil
}
