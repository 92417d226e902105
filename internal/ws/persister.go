package ws

import (
	"context"

	"gridmatch/internal/store"
)

// Persister is the durable mirror of in-memory rooms. Calls are issued
// fire-and-forget; a failing persister never affects gameplay.
// *store.Store satisfies it.
type Persister interface {
	GetMatch(ctx context.Context, id string) (*store.Match, error)
	CreateMatchWithID(ctx context.Context, id, creatorID string) error
	RecordOpponent(ctx context.Context, matchID, opponentID string) error
	RecordResult(ctx context.Context, matchID string, winnerID *string) error
	DeleteMatch(ctx context.Context, matchID string) error
}
