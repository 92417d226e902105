package store

import "context"

// schemaSQL mirrors migrations/000001_init.up.sql so a fresh deployment
// can bootstrap itself without a migration runner.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS players (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS matches (
    id TEXT PRIMARY KEY,
    creator_id TEXT NOT NULL REFERENCES players(id),
    opponent_id TEXT REFERENCES players(id),
    winner_id TEXT REFERENCES players(id),
    status TEXT NOT NULL DEFAULT 'waiting',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    ended_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_matches_creator ON matches (creator_id);
CREATE INDEX IF NOT EXISTS idx_matches_status ON matches (status);
`

// EnsureSchema creates the tables when they do not exist yet. All
// statements are idempotent, so running it on every start is safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaSQL)
	return err
}
