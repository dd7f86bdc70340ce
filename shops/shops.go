package shops

import (
	"context"
	"time"
)

// Shop is the public storefront bound to a seller account. When a seller
// logs in, the shop identity is what the client sees as the acting party.
type Shop struct {
	ID        string    `json:"id,omitempty"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	AvatarURL string    `json:"avatar,omitempty"`
	Active    bool      `json:"active,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Repo is the shop store. GetByOwner returns (nil, nil) when the owner has
// no shop; errors are reserved for storage failures.
type Repo interface {
	Create(ctx context.Context, s *Shop) error
	GetByOwner(ctx context.Context, ownerID string) (*Shop, error)
	GetBySlug(ctx context.Context, slug string) (*Shop, error)
}
