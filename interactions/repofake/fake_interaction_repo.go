package fakeinteractionrepo

import (
	"context"
	"sync"

	"github.com/marketloop/auth-server/interactions"
)

var _ interactions.Repo = (*FakeInteractionRepo)(nil)

// FakeInteractionRepo records re-attribution calls for assertions in tests.
type FakeInteractionRepo struct {
	Calls []ReattributeCall
	Err   error
	lock  sync.Mutex
}

type ReattributeCall struct {
	AnonSessionID string
	ActorType     string
	ActorID       string
}

func NewFakeInteractionRepo() *FakeInteractionRepo {
	return &FakeInteractionRepo{}
}

func (ir *FakeInteractionRepo) Reattribute(_ context.Context, anonSessionID, actorType, actorID string) error {
	ir.lock.Lock()
	defer ir.lock.Unlock()

	if ir.Err != nil {
		return ir.Err
	}
	ir.Calls = append(ir.Calls, ReattributeCall{AnonSessionID: anonSessionID, ActorType: actorType, ActorID: actorID})
	return nil
}
