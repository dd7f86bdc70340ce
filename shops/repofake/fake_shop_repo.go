package fakeshoprepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marketloop/auth-server/shops"
)

var _ shops.Repo = (*FakeShopRepo)(nil)

// FakeShopRepo is an in-memory shop store for tests.
type FakeShopRepo struct {
	shops map[string]*shops.Shop // keyed by owner id
	lock  sync.RWMutex
}

func NewFakeShopRepo() *FakeShopRepo {
	return &FakeShopRepo{shops: make(map[string]*shops.Shop)}
}

func (sr *FakeShopRepo) Create(_ context.Context, s *shops.Shop) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	sr.shops[s.OwnerID] = &cp
	return nil
}

func (sr *FakeShopRepo) GetByOwner(_ context.Context, ownerID string) (*shops.Shop, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	s, ok := sr.shops[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (sr *FakeShopRepo) GetBySlug(_ context.Context, slug string) (*shops.Shop, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	for _, s := range sr.shops {
		if s.Slug == slug {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}
