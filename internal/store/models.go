package store

import "time"

const (
	MatchStatusWaiting  = "waiting"
	MatchStatusPlaying  = "playing"
	MatchStatusFinished = "finished"
)

type Player struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Match struct {
	ID         string
	CreatorID  string
	OpponentID string
	WinnerID   *string
	Status     string
	CreatedAt  time.Time
	EndedAt    *time.Time
}
