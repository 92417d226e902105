package ws

import "gridmatch/internal/game"

// Inbound messages. Every frame carries a discriminating "type" field and
// is parsed a second time into the matching struct.

type JoinMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type MoveMessage struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	PlayerID  string `json:"playerId"`
	CellIndex int    `json:"cellIndex"`
}

type ChatMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
}

type LeaveMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

type RematchMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// Outbound messages.

type PlayerInfo struct {
	PlayerID string `json:"playerId"`
	Symbol   string `json:"symbol"`
}

type PlayerData struct {
	Type    string       `json:"type"`
	Players []PlayerInfo `json:"players"`
}

type Start struct {
	Type   string     `json:"type"`
	RoomID string     `json:"roomId"`
	Board  game.Board `json:"board"`
	Turn   string     `json:"turn"`
}

type Reconnect struct {
	Type   string      `json:"type"`
	RoomID string      `json:"roomId"`
	Board  game.Board  `json:"board"`
	Turn   string      `json:"turn"`
	Chat   []ChatEntry `json:"chat"`
}

type MoveUpdate struct {
	Type      string     `json:"type"`
	CellIndex int        `json:"cellIndex"`
	Symbol    string     `json:"symbol"`
	Board     game.Board `json:"board"`
	Turn      string     `json:"turn"`
}

// GameOver reasons for forfeits. A normal win or draw carries no reason.
const (
	ReasonOpponentLeft         = "opponent_left"
	ReasonOpponentDisconnected = "opponent_disconnected"
)

type GameOver struct {
	Type     string `json:"type"`
	Winner   string `json:"winner"`
	WinnerID string `json:"winnerId,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type ChatEntry struct {
	SenderID    string `json:"senderId"`
	Text        string `json:"text"`
	TimestampMS int64  `json:"timestampMs"`
}

type ChatBroadcast struct {
	Type string `json:"type"`
	ChatEntry
}

type RematchUpdate struct {
	Type   string `json:"type"`
	Votes  int    `json:"votes"`
	Needed int    `json:"needed"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type HeartbeatAck struct {
	Type string `json:"type"`
}
