// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"flat_bot/internal/model"
)

// Storage is the interface for all persistence operations.
//
// The seen set is loaded and replaced as a whole; callers hold a snapshot
// for the duration of a run. Subscribers are mutated one at a time by the
// bot.
type Storage interface {
	LoadSeen(ctx context.Context) (model.IDSet, error)
	SaveSeen(ctx context.Context, seen model.IDSet) error

	ListSubscribers(ctx context.Context) ([]int64, error)
	// AddSubscriber reports whether chatID was newly added.
	AddSubscriber(ctx context.Context, chatID int64) (bool, error)
	// RemoveSubscriber reports whether chatID was subscribed.
	RemoveSubscriber(ctx context.Context, chatID int64) (bool, error)

	Close() error
}
