package shops

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresRepo persists shops in Postgres.
type PostgresRepo struct {
	db *sql.DB
}

var _ Repo = (*PostgresRepo)(nil)

// NewPostgresRepo returns a shop repository backed by the given db.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, s *Shop) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shops (id, owner_id, name, slug, avatar_url, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OwnerID, s.Name, s.Slug, s.AvatarURL, s.Active, s.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) GetByOwner(ctx context.Context, ownerID string) (*Shop, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, slug, avatar_url, active, created_at
		FROM shops WHERE owner_id = $1`, ownerID)
	return scanShop(row)
}

func (r *PostgresRepo) GetBySlug(ctx context.Context, slug string) (*Shop, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, slug, avatar_url, active, created_at
		FROM shops WHERE slug = $1`, slug)
	return scanShop(row)
}

func scanShop(row *sql.Row) (*Shop, error) {
	var (
		s      Shop
		avatar sql.NullString
	)
	err := row.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Slug, &avatar, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.AvatarURL = avatar.String
	return &s, nil
}
