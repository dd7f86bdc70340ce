package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Default lifetimes. Access and refresh TTLs are tunable through Config;
// the cookie lifetimes in the HTTP layer are deliberately shorter.
const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultCSRFTTL    = time.Hour
)

// Claims is the claim shape shared by access and refresh tokens. CSRF tokens
// carry the account id only.
type Claims struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the three independent signing secrets and token lifetimes.
// Access and refresh secrets are separate key-management slots so that
// compromise of one cannot forge the other token class.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	CSRFSecret    []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	CSRFTTL       time.Duration
	Issuer        string
}

// Manager mints and verifies the platform's three token classes.
type Manager struct {
	config  Config
	nowTime func() time.Time
}

// Option modifies a Manager instance.
type Option func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// New validates the config and returns a token Manager.
func New(cfg Config, options ...Option) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 || len(cfg.CSRFSecret) == 0 {
		return nil, errors.New("[token.New] all three signing secrets are required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.CSRFTTL <= 0 {
		cfg.CSRFTTL = DefaultCSRFTTL
	}

	m := &Manager{
		config:  cfg,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// MintAccess creates a short-lived access token carrying the account id and
// primary role, signed with the access secret.
func (m *Manager) MintAccess(accountID, role string) (string, error) {
	return m.mint(m.config.AccessSecret, m.config.AccessTTL, accountID, role)
}

// MintRefresh creates a refresh token with the same claim shape as the
// access token but signed with the refresh secret.
func (m *Manager) MintRefresh(accountID, role string) (string, error) {
	return m.mint(m.config.RefreshSecret, m.config.RefreshTTL, accountID, role)
}

// MintCSRF creates the double-submit token delivered as a readable cookie.
func (m *Manager) MintCSRF(accountID string) (string, error) {
	return m.mint(m.config.CSRFSecret, m.config.CSRFTTL, accountID, "")
}

// ParseAccess verifies signature and expiry against the access secret.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(m.config.AccessSecret, tokenStr)
}

// ParseRefresh verifies signature and expiry against the refresh secret.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(m.config.RefreshSecret, tokenStr)
}

// ParseCSRF verifies signature and expiry against the csrf secret.
func (m *Manager) ParseCSRF(tokenStr string) (*Claims, error) {
	return m.parse(m.config.CSRFSecret, tokenStr)
}

func (m *Manager) mint(secret []byte, ttl time.Duration, accountID, role string) (string, error) {
	now := m.nowTime()
	claims := Claims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.mint] SignedString")
	}
	return signed, nil
}

func (m *Manager) parse(secret []byte, tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.nowTime),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
