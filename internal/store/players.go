package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreatePlayer(ctx context.Context, name string) (string, error) {
	id := NewID()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO players (id, name) VALUES ($1, $2)`, id, name)
	return id, err
}

func (s *Store) GetPlayer(ctx context.Context, id string) (*Player, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM players WHERE id = $1`, id)
	var p Player
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
