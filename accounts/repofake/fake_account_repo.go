package fakeaccountrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/auth-server/accounts"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

// FakeAccountRepo is an in-memory account store for tests. It honors the
// same compare-and-swap contract as the Postgres implementation.
type FakeAccountRepo struct {
	accounts map[string]*accounts.Account
	emailIds map[string]string // email to account id
	lock     sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{
		accounts: make(map[string]*accounts.Account),
		emailIds: make(map[string]string),
	}
}

func (ar *FakeAccountRepo) Create(_ context.Context, a *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if _, ok := ar.emailIds[a.Email]; ok {
		return accounts.ErrEmailTaken
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	cp := *a
	ar.accounts[a.ID] = &cp
	ar.emailIds[a.Email] = a.ID
	return nil
}

func (ar *FakeAccountRepo) GetByEmail(_ context.Context, email string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.emailIds[email]
	if !ok {
		return nil, nil
	}
	cp := *ar.accounts[id]
	return &cp, nil
}

func (ar *FakeAccountRepo) GetByID(_ context.Context, id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	a, ok := ar.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (ar *FakeAccountRepo) BindSession(_ context.Context, accountID string, b accounts.SessionBinding) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	a, ok := ar.accounts[accountID]
	if !ok {
		return nil
	}
	a.CurrentRefreshToken = b.RefreshToken
	a.RefreshUsageCount = b.UsageCount
	a.SessionIP = b.IP
	a.SessionUserAgent = b.UserAgent
	a.LastLoginAt = time.Now().UTC()
	return nil
}

func (ar *FakeAccountRepo) RotateSession(_ context.Context, accountID, currentToken string, b accounts.SessionBinding) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	a, ok := ar.accounts[accountID]
	if !ok || a.CurrentRefreshToken != currentToken {
		return accounts.ErrSessionConflict
	}
	a.CurrentRefreshToken = b.RefreshToken
	a.RefreshUsageCount = b.UsageCount
	a.SessionIP = b.IP
	a.SessionUserAgent = b.UserAgent
	return nil
}

func (ar *FakeAccountRepo) ClearSession(_ context.Context, accountID string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if a, ok := ar.accounts[accountID]; ok {
		a.CurrentRefreshToken = ""
		a.RefreshUsageCount = 0
	}
	return nil
}

func (ar *FakeAccountRepo) ClearSessionByToken(_ context.Context, token string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if token == "" {
		return nil
	}
	for _, a := range ar.accounts {
		if a.CurrentRefreshToken == token {
			a.CurrentRefreshToken = ""
			a.RefreshUsageCount = 0
			return nil
		}
	}
	return nil
}
