package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dip-aaa/web-project-sub002/internal/otp/domain"
)

// PostgresRepository stores challenges in the otp_challenges table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an OTP challenge repository that uses the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const upsertChallenge = `INSERT INTO otp_challenges (id, email, code_hash, expires_at, attempt_count, last_sent_at, created_at)
VALUES ($1, $2, $3, $4, 0, $5, $6)
ON CONFLICT (email) DO UPDATE SET
	code_hash = EXCLUDED.code_hash,
	expires_at = EXCLUDED.expires_at,
	attempt_count = 0,
	last_sent_at = EXCLUDED.last_sent_at`

func (r *PostgresRepository) Upsert(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, upsertChallenge,
		c.ID, c.Email, c.CodeHash, c.ExpiresAt, c.LastSentAt, c.CreatedAt)
	return err
}

const getChallengeByEmail = `SELECT id, email, code_hash, expires_at, attempt_count, last_sent_at, created_at
FROM otp_challenges WHERE email = $1`

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Challenge, error) {
	var c domain.Challenge
	err := r.db.QueryRowContext(ctx, getChallengeByEmail, email).Scan(
		&c.ID, &c.Email, &c.CodeHash, &c.ExpiresAt, &c.AttemptCount, &c.LastSentAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

const incrementAttempts = `UPDATE otp_challenges SET attempt_count = attempt_count + 1
WHERE email = $1 RETURNING attempt_count`

func (r *PostgresRepository) IncrementAttempts(ctx context.Context, email string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, incrementAttempts, email).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE email = $1`, email)
	return err
}
