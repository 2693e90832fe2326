package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dip-aaa/web-project-sub002/internal/catalog/domain"
)

// PostgresRepository reads and writes the colleges and categories tables.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(sqlDB *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: sqlDB}
}

// UpsertCollege inserts c or overwrites the row with the same id.
func (r *PostgresRepository) UpsertCollege(ctx context.Context, c domain.College) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO colleges (id, name, email_domain, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, email_domain = EXCLUDED.email_domain, updated_at = EXCLUDED.updated_at`,
		c.ID, c.Name, strings.ToLower(c.EmailDomain), now)
	return err
}

// UpsertCategory inserts c or overwrites the row with the same id.
func (r *PostgresRepository) UpsertCategory(ctx context.Context, c domain.Category) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, slug, created_at, updated_at) VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug, updated_at = EXCLUDED.updated_at`,
		c.ID, c.Name, c.Slug, now)
	return err
}

func (r *PostgresRepository) ListColleges(ctx context.Context) ([]domain.College, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, email_domain FROM colleges ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.College
	for rows.Next() {
		var c domain.College
		if err := rows.Scan(&c.ID, &c.Name, &c.EmailDomain); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CollegeByDomain returns the college whose email domain is domain or a parent of it,
// or nil if none matches. The longest matching domain wins.
func (r *PostgresRepository) CollegeByDomain(ctx context.Context, emailDomain string) (*domain.College, error) {
	var c domain.College
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email_domain FROM colleges
		 WHERE $1 = email_domain OR $1 LIKE '%.' || email_domain
		 ORDER BY length(email_domain) DESC LIMIT 1`,
		strings.ToLower(emailDomain)).
		Scan(&c.ID, &c.Name, &c.EmailDomain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
