package postgres

import (
	"context"
	"errors"
	"testing"

	"survey-public-api/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanRepo_GetTier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPlanRepo(mock)

	mock.ExpectQuery("SELECT tier FROM account_plans").
		WithArgs("user-pro").
		WillReturnRows(pgxmock.NewRows([]string{"tier"}).AddRow("pro"))
	tier, found, err := repo.GetTier(context.Background(), "user-pro")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.TierPro, tier)

	mock.ExpectQuery("SELECT tier FROM account_plans").
		WithArgs("user-none").
		WillReturnError(pgx.ErrNoRows)
	_, found, err = repo.GetTier(context.Background(), "user-none")
	require.NoError(t, err)
	assert.False(t, found)

	mock.ExpectQuery("SELECT tier FROM account_plans").
		WithArgs("user-err").
		WillReturnError(errors.New("timeout"))
	_, _, err = repo.GetTier(context.Background(), "user-err")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
