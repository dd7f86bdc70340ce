package session

import "github.com/marketloop/auth-server/accounts"

// StateKind tags the per-account session state. The stored fields on the
// account record imply the state; this makes the transitions explicit so the
// binding and ceiling rules can be tested on their own.
type StateKind int

const (
	// LoggedOut: no valid refresh token stored.
	LoggedOut StateKind = iota
	// Active: a refresh token is stored, the usage counter is below the
	// ceiling, and the device fingerprint from the last login/refresh is set.
	Active
)

// State is the tagged session state derived from an account's stored
// session-binding fields.
type State struct {
	Kind           StateKind
	UsageCount     int
	BoundIP        string
	BoundUserAgent string
}

// StateOf derives the session state for an account. A cleared refresh slot
// always reads as LoggedOut regardless of the other binding fields.
func StateOf(a *accounts.Account) State {
	if a == nil || a.CurrentRefreshToken == "" {
		return State{Kind: LoggedOut}
	}
	return State{
		Kind:           Active,
		UsageCount:     a.RefreshUsageCount,
		BoundIP:        a.SessionIP,
		BoundUserAgent: a.SessionUserAgent,
	}
}
