package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dip-aaa/web-project-sub002/internal/db"
	"github.com/dip-aaa/web-project-sub002/internal/user/domain"
)

// Querier is satisfied by *sql.DB and *sql.Tx so the repository can join a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresRepository struct {
	q Querier
}

// NewPostgresRepository returns a user repository backed by q.
func NewPostgresRepository(q Querier) *PostgresRepository {
	return &PostgresRepository{q: q}
}

const userColumns = `id, email, name, phone, department, college_id, status, created_at, updated_at`

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u                      domain.User
		phone, dept, collegeID sql.NullString
		status                 string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &phone, &dept, &collegeID, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Phone = phone.String
	u.Department = dept.String
	u.CollegeID = collegeID.String
	u.Status = domain.UserStatus(status)
	return &u, nil
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns the user for the normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Create inserts u. ID, CreatedAt and UpdatedAt must be set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Name, db.NullString(u.Phone), db.NullString(u.Department),
		db.NullString(u.CollegeID), string(u.Status), u.CreatedAt, u.UpdatedAt)
	return err
}

func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	_, err := r.q.ExecContext(ctx,
		`UPDATE users SET name = $2, phone = $3, department = $4, college_id = $5, status = $6, updated_at = $7 WHERE id = $1`,
		u.ID, u.Name, db.NullString(u.Phone), db.NullString(u.Department),
		db.NullString(u.CollegeID), string(u.Status), u.UpdatedAt)
	return err
}

func (r *PostgresRepository) Activate(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET status = 'active', updated_at = $2 WHERE id = $1 AND status = 'pending'`,
		id, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
