package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketloop/auth-server/accounts"
	fakeaccountrepo "github.com/marketloop/auth-server/accounts/repofake"
	fakeinteractionrepo "github.com/marketloop/auth-server/interactions/repofake"
	"github.com/marketloop/auth-server/session"
	"github.com/marketloop/auth-server/shops"
	fakeshoprepo "github.com/marketloop/auth-server/shops/repofake"
	"github.com/marketloop/auth-server/token"
)

const (
	testAccountID = "account-1"
	testEmail     = "jane.doe@example.com"
	testPassword  = "Password123"
	testIP        = "203.0.113.7"
	testUserAgent = "Mozilla/5.0 (X11; Linux x86_64)"
)

// testFixture holds all test dependencies
type testFixture struct {
	accountRepo     *fakeaccountrepo.FakeAccountRepo
	shopRepo        *fakeshoprepo.FakeShopRepo
	interactionRepo *fakeinteractionrepo.FakeInteractionRepo
	tokens          *token.Manager
	service         *session.Service
	now             time.Time
}

// fakeLimiter is a scriptable login limiter.
type fakeLimiter struct {
	checkErr error
	failures int
	resets   int
}

func (l *fakeLimiter) Check(_ context.Context, _, _ string) error { return l.checkErr }
func (l *fakeLimiter) RecordFailure(_ context.Context, _, _ string) error {
	l.failures++
	return nil
}
func (l *fakeLimiter) Reset(_ context.Context, _, _ string) error {
	l.resets++
	return nil
}

func setupTestFixture(t *testing.T, options ...session.ServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		accountRepo:     fakeaccountrepo.NewFakeAccountRepo(),
		shopRepo:        fakeshoprepo.NewFakeShopRepo(),
		interactionRepo: fakeinteractionrepo.NewFakeInteractionRepo(),
		now:             time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	tokens, err := token.New(token.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		CSRFSecret:    []byte("csrf-secret"),
		Issuer:        "test-issuer",
	}, token.WithNowTime(func() time.Time { return f.now }))
	require.NoError(t, err)
	f.tokens = tokens

	service, err := session.NewService(session.Repos{
		Accounts:     f.accountRepo,
		Shops:        f.shopRepo,
		Interactions: f.interactionRepo,
	}, tokens, options...)
	require.NoError(t, err)
	f.service = service

	return f
}

// advance moves the injected clock forward so successive mints produce
// distinct token strings.
func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *testFixture) createTestAccount(t *testing.T, role accounts.Role) {
	t.Helper()

	hash, err := accounts.HashPassword(testPassword)
	require.NoError(t, err)

	err = f.accountRepo.Create(context.Background(), &accounts.Account{
		ID:           testAccountID,
		Email:        testEmail,
		PasswordHash: hash,
		Name:         "Jane Doe",
		PrimaryRole:  role,
		Roles:        []accounts.Role{role},
	})
	require.NoError(t, err)
}

func (f *testFixture) createTestShop(t *testing.T, active bool) {
	t.Helper()

	err := f.shopRepo.Create(context.Background(), &shops.Shop{
		ID:        "shop-1",
		OwnerID:   testAccountID,
		Name:      "Jane's Vintage",
		Slug:      "janes-vintage",
		AvatarURL: "https://cdn.example.com/shop-1.png",
		Active:    active,
	})
	require.NoError(t, err)
}

func (f *testFixture) login(t *testing.T) *session.Credentials {
	t.Helper()

	creds, err := f.service.Login(context.Background(), session.LoginInput{
		Email:     testEmail,
		Password:  testPassword,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.NoError(t, err)
	return creds
}

func (f *testFixture) refresh(t *testing.T, refreshToken string) *session.Credentials {
	t.Helper()

	creds, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     refreshToken,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.NoError(t, err)
	return creds
}

func TestLogin_Success(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)

	require.NotEmpty(t, creds.AccessToken)
	require.NotEmpty(t, creds.RefreshToken)
	require.NotEmpty(t, creds.CSRFToken)
	require.Equal(t, "user", creds.Actor.Type)
	require.Equal(t, testAccountID, creds.Actor.ID)
	require.Equal(t, "buyer", creds.Actor.Role)

	acct, err := f.accountRepo.GetByID(context.Background(), testAccountID)
	require.NoError(t, err)
	require.Equal(t, creds.RefreshToken, acct.CurrentRefreshToken)
	require.Equal(t, 0, acct.RefreshUsageCount)
	require.Equal(t, testIP, acct.SessionIP)
	require.Equal(t, testUserAgent, acct.SessionUserAgent)
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Login(context.Background(), session.LoginInput{
		Email:    "nobody@example.com",
		Password: testPassword,
	})
	require.ErrorIs(t, err, session.ErrAccountNotFound)
}

func TestLogin_InvalidPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	_, err := f.service.Login(context.Background(), session.LoginInput{
		Email:    testEmail,
		Password: "WrongPassword1",
	})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
}

// A second login overwrites the single refresh slot, so the first session's
// refresh token is dead even though its signature still verifies.
func TestLogin_SupersedesPreviousSession(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	first := f.login(t)
	f.advance(time.Second)
	second := f.login(t)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     first.RefreshToken,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrTokenReuse)

	// The surviving session still refreshes normally.
	f.advance(time.Second)
	f.refresh(t, second.RefreshToken)
}

func TestLogin_SellerPresentsAsShop(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleSeller)
	f.createTestShop(t, true)

	creds := f.login(t)

	require.Equal(t, "shop", creds.Actor.Type)
	require.Equal(t, "shop-1", creds.Actor.ID)
	require.Equal(t, "Jane's Vintage", creds.Actor.Name)
	require.Equal(t, "janes-vintage", creds.Actor.Slug)
	require.Equal(t, "Jane Doe", creds.Actor.SellerName)
}

func TestLogin_SellerWithInactiveShopPresentsAsUser(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleSeller)
	f.createTestShop(t, false)

	creds := f.login(t)

	require.Equal(t, "user", creds.Actor.Type)
	require.Equal(t, testAccountID, creds.Actor.ID)
}

func TestLogin_ReattributesAnonInteractions(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	_, err := f.service.Login(context.Background(), session.LoginInput{
		Email:         testEmail,
		Password:      testPassword,
		IP:            testIP,
		UserAgent:     testUserAgent,
		AnonSessionID: "anon-42",
	})
	require.NoError(t, err)

	require.Len(t, f.interactionRepo.Calls, 1)
	require.Equal(t, "anon-42", f.interactionRepo.Calls[0].AnonSessionID)
	require.Equal(t, "user", f.interactionRepo.Calls[0].ActorType)
	require.Equal(t, testAccountID, f.interactionRepo.Calls[0].ActorID)
}

func TestLogin_ReattributionFailureDoesNotBlockLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)
	f.interactionRepo.Err = context.DeadlineExceeded

	creds, err := f.service.Login(context.Background(), session.LoginInput{
		Email:         testEmail,
		Password:      testPassword,
		IP:            testIP,
		UserAgent:     testUserAgent,
		AnonSessionID: "anon-42",
	})
	require.NoError(t, err)
	require.NotEmpty(t, creds.RefreshToken)
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := &fakeLimiter{checkErr: context.DeadlineExceeded}
	f := setupTestFixture(t, session.WithLoginLimiter(limiter))
	f.createTestAccount(t, accounts.RoleBuyer)

	_, err := f.service.Login(context.Background(), session.LoginInput{
		Email:    testEmail,
		Password: testPassword,
	})
	require.ErrorIs(t, err, session.ErrLoginRateLimited)
}

func TestLogin_FailureRecordedAndSuccessResets(t *testing.T) {
	limiter := &fakeLimiter{}
	f := setupTestFixture(t, session.WithLoginLimiter(limiter))
	f.createTestAccount(t, accounts.RoleBuyer)

	_, err := f.service.Login(context.Background(), session.LoginInput{
		Email:    testEmail,
		Password: "WrongPassword1",
	})
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	require.Equal(t, 1, limiter.failures)

	f.login(t)
	require.Equal(t, 1, limiter.resets)
}

func TestRefresh_Success(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	f.advance(time.Second)
	rotated := f.refresh(t, creds.RefreshToken)
	require.NotEqual(t, creds.RefreshToken, rotated.RefreshToken)

	acct, err := f.accountRepo.GetByID(context.Background(), testAccountID)
	require.NoError(t, err)
	require.Equal(t, rotated.RefreshToken, acct.CurrentRefreshToken)
	require.Equal(t, 1, acct.RefreshUsageCount)
}

func TestRefresh_MissingToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{})
	require.ErrorIs(t, err, session.ErrMissingRefreshToken)
}

func TestRefresh_MalformedToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{Token: "not-a-jwt"})
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
}

// An access token presented as a refresh token must be rejected: the two
// classes are signed with different secrets.
func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     creds.AccessToken,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	f.advance(token.DefaultRefreshTTL + time.Minute)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     creds.RefreshToken,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrRefreshInvalid)
}

// A replayed token fails because the slot holds its successor, and the live
// session is unaffected.
func TestRefresh_ReplayedTokenRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	f.advance(time.Second)
	rotated := f.refresh(t, creds.RefreshToken)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     creds.RefreshToken,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrTokenReuse)

	f.advance(time.Second)
	f.refresh(t, rotated.RefreshToken)
}

func TestRefresh_IPMismatchRevokesSession(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     creds.RefreshToken,
		IP:        "198.51.100.9",
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrDeviceMismatch)

	// Revocation is a side effect: even the legitimate device is now out.
	_, err = f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     creds.RefreshToken,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrTokenReuse)
}

func TestRefresh_UserAgentMismatchRevokesSession(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     creds.RefreshToken,
		IP:        testIP,
		UserAgent: testUserAgent + " upgraded",
	})
	require.ErrorIs(t, err, session.ErrDeviceMismatch)

	acct, getErr := f.accountRepo.GetByID(context.Background(), testAccountID)
	require.NoError(t, getErr)
	require.Empty(t, acct.CurrentRefreshToken)
}

func TestRefresh_UsageCeiling(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	current := creds.RefreshToken

	for i := 1; i <= session.MaxRefreshUsage; i++ {
		f.advance(time.Second)
		rotated := f.refresh(t, current)
		current = rotated.RefreshToken
	}

	acct, err := f.accountRepo.GetByID(context.Background(), testAccountID)
	require.NoError(t, err)
	require.Equal(t, session.MaxRefreshUsage, acct.RefreshUsageCount)

	f.advance(time.Second)
	_, err = f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     current,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrUsageExceeded)

	acct, err = f.accountRepo.GetByID(context.Background(), testAccountID)
	require.NoError(t, err)
	require.Empty(t, acct.CurrentRefreshToken)
}

// A fresh login resets the usage counter, so the full budget is available
// again after re-authentication.
func TestRefresh_UsageCounterResetsOnLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	f.advance(time.Second)
	f.refresh(t, creds.RefreshToken)

	f.advance(time.Second)
	f.login(t)

	acct, err := f.accountRepo.GetByID(context.Background(), testAccountID)
	require.NoError(t, err)
	require.Equal(t, 0, acct.RefreshUsageCount)
}

func TestLogout_ClearsSlot(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	require.NoError(t, f.service.Logout(context.Background(), creds.RefreshToken))

	_, err := f.service.Refresh(context.Background(), session.RefreshInput{
		Token:     creds.RefreshToken,
		IP:        testIP,
		UserAgent: testUserAgent,
	})
	require.ErrorIs(t, err, session.ErrTokenReuse)
}

func TestLogout_Idempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	require.NoError(t, f.service.Logout(context.Background(), creds.RefreshToken))
	require.NoError(t, f.service.Logout(context.Background(), creds.RefreshToken))
	require.NoError(t, f.service.Logout(context.Background(), ""))
	require.NoError(t, f.service.Logout(context.Background(), "token-nobody-holds"))
}

// A superseded token must not log out the live session it was replaced by.
func TestLogout_SupersededTokenIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)
	f.advance(time.Second)
	rotated := f.refresh(t, creds.RefreshToken)

	require.NoError(t, f.service.Logout(context.Background(), creds.RefreshToken))

	f.advance(time.Second)
	f.refresh(t, rotated.RefreshToken)
}

func TestVerifyAccess(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestAccount(t, accounts.RoleBuyer)

	creds := f.login(t)

	claims, err := f.service.VerifyAccess(creds.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testAccountID, claims.AccountID)
	require.Equal(t, "buyer", claims.Role)

	f.advance(token.DefaultAccessTTL + time.Minute)
	_, err = f.service.VerifyAccess(creds.AccessToken)
	require.Error(t, err)
}

func TestActorFor_UnknownAccount(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.ActorFor(context.Background(), "missing")
	require.ErrorIs(t, err, session.ErrAccountNotFound)
}

func TestCheckCSRF(t *testing.T) {
	require.NoError(t, session.CheckCSRF("tok", "tok"))
	require.ErrorIs(t, session.CheckCSRF("tok", "other"), session.ErrCSRFMismatch)
	require.ErrorIs(t, session.CheckCSRF("", "tok"), session.ErrCSRFMismatch)
	require.ErrorIs(t, session.CheckCSRF("tok", ""), session.ErrCSRFMismatch)
	// Both absent compares equal; cookie-less logout relies on this.
	require.NoError(t, session.CheckCSRF("", ""))
}
