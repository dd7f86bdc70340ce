package accounts

import (
	"context"
	"errors"
)

// ErrSessionConflict is returned by RotateSession when the stored refresh
// slot no longer matches the presented token: either a concurrent refresh
// won the rotation, or the token was superseded by a newer login.
var ErrSessionConflict = errors.New("accounts: refresh slot changed concurrently")

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("accounts: email already registered")

// SessionBinding is the set of session fields written together on every
// login and refresh. The refresh slot, usage counter, and device fingerprint
// always move as one unit.
type SessionBinding struct {
	RefreshToken string
	UsageCount   int
	IP           string
	UserAgent    string
}

// Repo is the account store. Lookups return (nil, nil) when no account
// matches; errors are reserved for storage failures.
type Repo interface {
	Create(ctx context.Context, a *Account) error
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id string) (*Account, error)

	// BindSession overwrites the account's refresh slot with a fresh binding
	// (login: resets the usage counter, stamps last login). Any previously
	// stored refresh token is invalidated by the overwrite.
	BindSession(ctx context.Context, accountID string, b SessionBinding) error

	// RotateSession replaces the refresh slot with b only if the stored slot
	// still equals currentToken (compare-and-swap). Returns ErrSessionConflict
	// when the guard fails.
	RotateSession(ctx context.Context, accountID, currentToken string, b SessionBinding) error

	// ClearSession empties the account's refresh slot unconditionally.
	// Used for fail-closed revocation on device mismatch and usage ceiling.
	ClearSession(ctx context.Context, accountID string) error

	// ClearSessionByToken empties the refresh slot of whichever account
	// currently holds token. Clearing a token nobody holds is not an error.
	ClearSessionByToken(ctx context.Context, token string) error
}
