package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// CreateMatch inserts a waiting match record for the creator and returns
// its id.
func (s *Store) CreateMatch(ctx context.Context, creatorID string) (string, error) {
	id := NewID()
	return id, s.CreateMatchWithID(ctx, id, creatorID)
}

// CreateMatchWithID inserts a waiting match under a caller-chosen id. The
// coordinator uses this on rematch, where the in-memory room id has to be
// known before the write lands.
func (s *Store) CreateMatchWithID(ctx context.Context, id, creatorID string) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO matches (id, creator_id, status) VALUES ($1, $2, $3)`,
		id, creatorID, MatchStatusWaiting)
	return err
}

func (s *Store) GetMatch(ctx context.Context, id string) (*Match, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT id, creator_id, COALESCE(opponent_id, ''), winner_id, status, created_at, ended_at
		 FROM matches WHERE id = $1`, id)
	var m Match
	if err := row.Scan(&m.ID, &m.CreatorID, &m.OpponentID, &m.WinnerID, &m.Status, &m.CreatedAt, &m.EndedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// RecordOpponent fills the second slot and moves the match to playing.
func (s *Store) RecordOpponent(ctx context.Context, matchID, opponentID string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE matches SET opponent_id = $2, status = $3 WHERE id = $1`,
		matchID, opponentID, MatchStatusPlaying)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordResult finishes the match. A nil winnerID records a draw.
func (s *Store) RecordResult(ctx context.Context, matchID string, winnerID *string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE matches SET winner_id = $2, status = $3, ended_at = now() WHERE id = $1`,
		matchID, winnerID, MatchStatusFinished)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMatch removes an abandoned waiting match.
func (s *Store) DeleteMatch(ctx context.Context, matchID string) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM matches WHERE id = $1`, matchID)
	return err
}
