package interactions

import (
	"context"
	"database/sql"
)

// PostgresRepo re-attributes interaction rows in Postgres.
type PostgresRepo struct {
	db *sql.DB
}

var _ Repo = (*PostgresRepo)(nil)

// NewPostgresRepo returns an interaction repository backed by the given db.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Reattribute(ctx context.Context, anonSessionID, actorType, actorID string) error {
	if anonSessionID == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE interactions
		SET actor_type = $2, actor_id = $3, anon_session_id = NULL
		WHERE anon_session_id = $1`,
		anonSessionID, actorType, actorID,
	)
	return err
}
