package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dip-aaa/web-project-sub002/internal/user/domain"
)

var cols = []string{"id", "email", "name", "phone", "department", "college_id", "status", "created_at", "updated_at"}

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewPostgresRepository(sqlDB), mock
}

func TestPostgresRepository_GetByEmail(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("a@khwopa.edu.np").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u1", "a@khwopa.edu.np", "A", nil, "Computer", "khwopa", "pending", now, now))

	u, err := repo.GetByEmail(context.Background(), "a@khwopa.edu.np")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1", u.ID)
	assert.Empty(t, u.Phone)
	assert.Equal(t, "Computer", u.Department)
	assert.Equal(t, "khwopa", u.CollegeID)
	assert.Equal(t, domain.UserStatusPending, u.Status)
}

func TestPostgresRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByID(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestPostgresRepository_Create(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	u := &domain.User{ID: "u1", Email: "a@khwopa.edu.np", Name: "A", CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", "a@khwopa.edu.np", "A", sql.NullString{}, sql.NullString{}, sql.NullString{}, "pending", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create_Invalid(t *testing.T) {
	repo, mock := newMock(t)
	err := repo.Create(context.Background(), &domain.User{ID: "u1"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Activate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status = 'active'")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status = 'active'")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Activate(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Activate(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, ok, "second activation finds no pending row")
}
