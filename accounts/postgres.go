package accounts

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PostgresRepo persists accounts in Postgres. The refresh-slot operations
// are single conditional UPDATEs so that rotation is atomic per account.
type PostgresRepo struct {
	db *sql.DB
}

var _ Repo = (*PostgresRepo)(nil)

// NewPostgresRepo returns an account repository backed by the given db.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const accountColumns = `id, email, password_hash, name, avatar_url, primary_role, roles,
	created_at, last_login_at, current_refresh_token, refresh_usage_count, session_ip, session_user_agent`

func (r *PostgresRepo) Create(ctx context.Context, a *Account) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, name, avatar_url, primary_role, roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Email, a.PasswordHash, a.Name, a.AvatarURL, string(a.PrimaryRole), encodeRoles(a.Roles), a.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrEmailTaken
	}
	return err
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (r *PostgresRepo) BindSession(ctx context.Context, accountID string, b SessionBinding) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET current_refresh_token = $2,
		    refresh_usage_count   = $3,
		    session_ip            = $4,
		    session_user_agent    = $5,
		    last_login_at         = now()
		WHERE id = $1`,
		accountID, b.RefreshToken, b.UsageCount, b.IP, b.UserAgent,
	)
	return err
}

func (r *PostgresRepo) RotateSession(ctx context.Context, accountID, currentToken string, b SessionBinding) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET current_refresh_token = $3,
		    refresh_usage_count   = $4,
		    session_ip            = $5,
		    session_user_agent    = $6
		WHERE id = $1 AND current_refresh_token = $2`,
		accountID, currentToken, b.RefreshToken, b.UsageCount, b.IP, b.UserAgent,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionConflict
	}
	return nil
}

func (r *PostgresRepo) ClearSession(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET current_refresh_token = '', refresh_usage_count = 0
		WHERE id = $1`,
		accountID,
	)
	return err
}

func (r *PostgresRepo) ClearSessionByToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET current_refresh_token = '', refresh_usage_count = 0
		WHERE current_refresh_token = $1`,
		token,
	)
	return err
}

func scanAccount(row *sql.Row) (*Account, error) {
	var (
		a         Account
		roles     string
		role      string
		avatar    sql.NullString
		lastLogin sql.NullTime
		ip        sql.NullString
		ua        sql.NullString
		token     sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Name, &avatar, &role, &roles,
		&a.CreatedAt, &lastLogin, &token, &a.RefreshUsageCount, &ip, &ua,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.PrimaryRole = Role(role)
	a.Roles = decodeRoles(roles)
	a.AvatarURL = avatar.String
	if lastLogin.Valid {
		a.LastLoginAt = lastLogin.Time
	}
	a.CurrentRefreshToken = token.String
	a.SessionIP = ip.String
	a.SessionUserAgent = ua.String
	return &a, nil
}

func encodeRoles(roles []Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

func decodeRoles(s string) []Role {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	roles := make([]Role, len(parts))
	for i, p := range parts {
		roles[i] = Role(p)
	}
	return roles
}
