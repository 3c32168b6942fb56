// Package push persists web push subscriptions and delivers encrypted
// messages to them.
package push

import (
	"context"
	"errors"

	"cakeshop-notifier/internal/models"
)

// ErrNotFound is returned by Store.Get when the actor has no active
// subscription.
var ErrNotFound = errors.New("push subscription not found")

// Store keeps at most one active subscription per delivery actor.
type Store interface {
	// Save upserts the actor's subscription and marks it active.
	Save(ctx context.Context, actorID int64, sub models.PushSubscription) error
	// Get returns the active subscription or ErrNotFound.
	Get(ctx context.Context, actorID int64) (*models.PushSubscriptionRecord, error)
	// Deactivate soft-deletes the actor's subscription.
	Deactivate(ctx context.Context, actorID int64) error
}
