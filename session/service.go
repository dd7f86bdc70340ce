package session

import (
	"context"
	"crypto/subtle"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/marketloop/auth-server/accounts"
	"github.com/marketloop/auth-server/interactions"
	"github.com/marketloop/auth-server/shops"
	"github.com/marketloop/auth-server/token"
)

// MaxRefreshUsage bounds how many times a single refresh token lineage can
// be rotated before the account must log in again. This limits the blast
// radius of a leaked refresh token even when device binding is bypassed
// (e.g. shared NAT).
const MaxRefreshUsage = 10

// Actor is the normalized public identity returned after authentication.
// A seller bound to an active shop presents as the shop; everyone else
// presents as themselves.
type Actor struct {
	Type       string `json:"type"` // "user" or "shop"
	ID         string `json:"id"`
	Name       string `json:"name"`
	Slug       string `json:"slug,omitempty"`
	AvatarURL  string `json:"avatar,omitempty"`
	SellerName string `json:"sellerName,omitempty"`
	Role       string `json:"role,omitempty"`
}

// Credentials is the outcome of a successful login or refresh.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	Actor        Actor
}

// LoginInput carries the caller's credentials and device fingerprint.
type LoginInput struct {
	Email         string
	Password      string
	IP            string
	UserAgent     string
	AnonSessionID string
}

// RefreshInput carries the presented refresh token and the caller's current
// device fingerprint.
type RefreshInput struct {
	Token     string
	IP        string
	UserAgent string
}

// LoginLimiter throttles login attempts per identifier and client IP.
type LoginLimiter interface {
	Check(ctx context.Context, identifier, ip string) error
	RecordFailure(ctx context.Context, identifier, ip string) error
	Reset(ctx context.Context, identifier, ip string) error
}

// Repos holds all repository dependencies for the Service.
type Repos struct {
	Accounts     accounts.Repo
	Shops        shops.Repo
	Interactions interactions.Repo // optional; nil disables re-attribution
}

// Service owns the session lifecycle: login, token rotation with device
// binding, and logout. At most one refresh token is valid per account at any
// time; every transition overwrites the single slot.
type Service struct {
	repos   Repos
	tokens  *token.Manager
	limiter LoginLimiter
}

// ServiceOption modifies a Service instance.
type ServiceOption func(*Service)

// WithLoginLimiter enables login throttling.
func WithLoginLimiter(l LoginLimiter) ServiceOption {
	return func(s *Service) {
		s.limiter = l
	}
}

// NewService initializes the session Service with required dependencies.
func NewService(repos Repos, tokens *token.Manager, options ...ServiceOption) (*Service, error) {
	if repos.Accounts == nil {
		return nil, errors.New("[NewService] Accounts repo is required")
	}
	if repos.Shops == nil {
		return nil, errors.New("[NewService] Shops repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}

	s := &Service{
		repos:  repos,
		tokens: tokens,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Repos exposes the repository set, used by the HTTP layer for account
// registration.
func (s *Service) Repos() Repos {
	return s.repos
}

// Login verifies credentials, binds a fresh session to the caller's device
// fingerprint, and returns a full token set. Any previously stored refresh
// token is invalidated by the overwrite: one active session per account.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Credentials, error) {
	if s.limiter != nil {
		if err := s.limiter.Check(ctx, in.Email, in.IP); err != nil {
			return nil, ErrLoginRateLimited
		}
	}

	acct, err := s.repos.Accounts.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Login] GetByEmail")
	}
	if acct == nil {
		s.recordFailure(ctx, in.Email, in.IP)
		return nil, ErrAccountNotFound
	}

	if !accounts.CheckPasswordHash(in.Password, acct.PasswordHash) {
		s.recordFailure(ctx, in.Email, in.IP)
		return nil, ErrInvalidCredentials
	}

	creds, err := s.issue(ctx, acct, 0, in.IP, in.UserAgent, "")
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, in.Email, in.IP); err != nil {
			log.Err(err).Msg("login limiter reset failed")
		}
	}

	// Interactions recorded under the anonymous session now belong to the
	// authenticated actor. Best-effort: a failure here never blocks login.
	if s.repos.Interactions != nil && in.AnonSessionID != "" {
		if err := s.repos.Interactions.Reattribute(ctx, in.AnonSessionID, creds.Actor.Type, creds.Actor.ID); err != nil {
			log.Err(err).Str("anon_session", in.AnonSessionID).Msg("interaction re-attribution failed")
		}
	}

	return creds, nil
}

// Refresh rotates the token pair. Checks run in order and each failure is
// terminal with no partial effect, except the deliberate fail-closed
// revocations on device mismatch and usage ceiling.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (*Credentials, error) {
	if in.Token == "" {
		return nil, ErrMissingRefreshToken
	}

	claims, err := s.tokens.ParseRefresh(in.Token)
	if err != nil {
		return nil, ErrRefreshInvalid
	}

	acct, err := s.repos.Accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] GetByID")
	}
	// A superseded token still verifies; only the stored slot tells a live
	// session from a replayed one.
	if acct == nil || acct.CurrentRefreshToken != in.Token {
		return nil, ErrTokenReuse
	}

	// Exact match on origin and client signature. Any change is treated as
	// potential theft: revoke first, then reject.
	if acct.SessionIP != in.IP || acct.SessionUserAgent != in.UserAgent {
		if err := s.repos.Accounts.ClearSession(ctx, acct.ID); err != nil {
			return nil, errors.Wrap(err, "[Service.Refresh] ClearSession on device mismatch")
		}
		return nil, ErrDeviceMismatch
	}

	usage := acct.RefreshUsageCount + 1
	if usage > MaxRefreshUsage {
		if err := s.repos.Accounts.ClearSession(ctx, acct.ID); err != nil {
			return nil, errors.Wrap(err, "[Service.Refresh] ClearSession on usage ceiling")
		}
		return nil, ErrUsageExceeded
	}

	return s.issue(ctx, acct, usage, in.IP, in.UserAgent, in.Token)
}

// Logout clears the refresh slot of whichever account holds the presented
// token. A missing or already-rotated token is a successful no-op: logout is
// idempotent and touches at most one session.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repos.Accounts.ClearSessionByToken(ctx, refreshToken); err != nil {
		return errors.Wrap(err, "[Service.Logout] ClearSessionByToken")
	}
	return nil
}

// VerifyAccess validates an access token by signature and expiry only; no
// account state is consulted.
func (s *Service) VerifyAccess(tokenStr string) (*token.Claims, error) {
	return s.tokens.ParseAccess(tokenStr)
}

// ActorFor resolves the normalized actor view for an account id.
func (s *Service) ActorFor(ctx context.Context, accountID string) (*Actor, error) {
	acct, err := s.repos.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.ActorFor] GetByID")
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	actor, err := s.resolveActor(ctx, acct)
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// CheckCSRF is the double-submit comparison: the header must equal the
// cookie bytewise. No server-side CSRF state is consulted. Both values
// absent compares equal, which keeps cookie-less logout idempotent.
func CheckCSRF(headerValue, cookieValue string) error {
	if subtle.ConstantTimeCompare([]byte(headerValue), []byte(cookieValue)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}

// issue mints the three tokens and writes the session binding. usage == 0
// means a fresh login (overwrite the slot); otherwise the write is a
// compare-and-swap rotation guarded by currentToken, so exactly one of two
// racing refreshes wins.
func (s *Service) issue(ctx context.Context, acct *accounts.Account, usage int, ip, userAgent, currentToken string) (*Credentials, error) {
	access, err := s.tokens.MintAccess(acct.ID, string(acct.PrimaryRole))
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] MintAccess")
	}
	refresh, err := s.tokens.MintRefresh(acct.ID, string(acct.PrimaryRole))
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] MintRefresh")
	}
	csrf, err := s.tokens.MintCSRF(acct.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.issue] MintCSRF")
	}

	binding := accounts.SessionBinding{
		RefreshToken: refresh,
		UsageCount:   usage,
		IP:           ip,
		UserAgent:    userAgent,
	}
	if usage == 0 {
		if err := s.repos.Accounts.BindSession(ctx, acct.ID, binding); err != nil {
			return nil, errors.Wrap(err, "[Service.issue] BindSession")
		}
	} else {
		err := s.repos.Accounts.RotateSession(ctx, acct.ID, currentToken, binding)
		if errors.Is(err, accounts.ErrSessionConflict) {
			return nil, ErrTokenReuse
		}
		if err != nil {
			return nil, errors.Wrap(err, "[Service.issue] RotateSession")
		}
	}

	actor, err := s.resolveActor(ctx, acct)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		CSRFToken:    csrf,
		Actor:        actor,
	}, nil
}

func (s *Service) resolveActor(ctx context.Context, acct *accounts.Account) (Actor, error) {
	if acct.PrimaryRole == accounts.RoleSeller {
		shop, err := s.repos.Shops.GetByOwner(ctx, acct.ID)
		if err != nil {
			return Actor{}, errors.Wrap(err, "[Service.resolveActor] GetByOwner")
		}
		if shop != nil && shop.Active {
			return Actor{
				Type:       interactions.ActorShop,
				ID:         shop.ID,
				Name:       shop.Name,
				Slug:       shop.Slug,
				AvatarURL:  shop.AvatarURL,
				SellerName: acct.Name,
			}, nil
		}
	}
	return Actor{
		Type:      interactions.ActorUser,
		ID:        acct.ID,
		Name:      acct.Name,
		AvatarURL: acct.AvatarURL,
		Role:      string(acct.PrimaryRole),
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, identifier, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, identifier, ip); err != nil {
		log.Err(err).Msg("login limiter increment failed")
	}
}
