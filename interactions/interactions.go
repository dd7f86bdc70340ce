package interactions

import "context"

// Actor types that interaction records can be attributed to.
const (
	ActorUser = "user"
	ActorShop = "shop"
)

// Repo re-points interaction records (likes, follows, feed events) recorded
// under a pre-login anonymous session to the authenticated actor. Login calls
// Reattribute best-effort; failures must not block authentication.
type Repo interface {
	Reattribute(ctx context.Context, anonSessionID, actorType, actorID string) error
}
