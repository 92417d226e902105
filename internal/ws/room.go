package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"gridmatch/internal/game"
	"gridmatch/internal/store"
)

type roomStatus string

const (
	roomWaiting  roomStatus = "waiting"
	roomPlaying  roomStatus = "playing"
	roomFinished roomStatus = "finished"
)

type eventKind int

const (
	evJoin eventKind = iota
	evMove
	evChat
	evLeave
	evDisconnect
	evRematch
	evGraceExpired
	evIdleCheck
)

type roomEvent struct {
	kind     eventKind
	playerID string
	c        *client
	cell     int
	text     string
}

// Room is one resident match. All fields below eventCh are owned by the
// room's single event-processing goroutine; nothing else touches them.
type Room struct {
	id  string
	srv *Server

	eventCh chan roomEvent
	done    chan struct{}

	board        game.Board
	players      [2]string
	conns        [2]*client
	turn         game.Symbol
	status       roomStatus
	winnerSlot   int
	chatLog      []ChatEntry
	graceTimers  map[string]*time.Timer
	rematchVotes []string
	lastActive   time.Time
}

func newRoom(s *Server, id string, players [2]string, status roomStatus) *Room {
	return &Room{
		id:          id,
		srv:         s,
		eventCh:     make(chan roomEvent, 32),
		done:        make(chan struct{}),
		players:     players,
		turn:        game.SymbolX,
		status:      status,
		winnerSlot:  -1,
		graceTimers: map[string]*time.Timer{},
		lastActive:  time.Now(),
	}
}

// roomFromMatch rebuilds a room from its persisted record. The board is
// not persisted, so a live match resumes from an empty grid.
func roomFromMatch(s *Server, m *store.Match) *Room {
	status := roomWaiting
	if m.OpponentID != "" {
		status = roomPlaying
	}
	if m.Status == store.MatchStatusFinished {
		status = roomFinished
	}
	r := newRoom(s, m.ID, [2]string{m.CreatorID, m.OpponentID}, status)
	if status == roomFinished && m.WinnerID != nil {
		if slot := r.slotOf(*m.WinnerID); slot >= 0 {
			r.winnerSlot = slot
		}
	}
	return r
}

func (r *Room) run() {
	for {
		select {
		case <-r.done:
			r.stopGraceTimers()
			return
		case ev := <-r.eventCh:
			r.apply(ev)
		}
	}
}

// post delivers an event to the room's lane, giving up silently once the
// room has been torn down.
func (r *Room) post(ev roomEvent) {
	select {
	case r.eventCh <- ev:
	case <-r.done:
	}
}

func (r *Room) apply(ev roomEvent) {
	if ev.kind != evIdleCheck {
		r.lastActive = time.Now()
	}
	switch ev.kind {
	case evJoin:
		r.handleJoin(ev.playerID, ev.c)
	case evMove:
		r.handleMove(ev.playerID, ev.cell)
	case evChat:
		r.handleChat(ev.playerID, ev.text)
	case evLeave:
		r.handleLeave(ev.playerID)
	case evDisconnect:
		r.handleDisconnect(ev.c)
	case evRematch:
		r.handleRematch(ev.playerID)
	case evGraceExpired:
		r.handleGraceExpired(ev.playerID)
	case evIdleCheck:
		r.handleIdleCheck()
	}
}

func (r *Room) handleJoin(playerID string, c *client) {
	if slot := r.slotOf(playerID); slot >= 0 {
		// reconnect path: rebind and cancel any pending forfeit
		r.cancelGrace(playerID)
		if old := r.conns[slot]; old != nil && old != c {
			r.srv.dropBinding(old)
		}
		r.conns[slot] = c
		r.srv.bind(c, r, playerID)
		r.broadcastPlayerData()
		if r.status == roomPlaying {
			r.broadcast(Start{Type: "start", RoomID: r.id, Board: r.board, Turn: string(r.turn)})
			r.sendTo(c, Reconnect{
				Type:   "reconnect",
				RoomID: r.id,
				Board:  r.board,
				Turn:   string(r.turn),
				Chat:   r.chatLog,
			})
		}
		log.Info().Str("room_id", r.id).Str("player_id", playerID).Int("slot", slot).Msg("player bound")
		return
	}

	if r.status == roomWaiting && r.players[1] == "" {
		r.players[1] = playerID
		r.conns[1] = c
		r.srv.bind(c, r, playerID)
		r.status = roomPlaying
		r.turn = game.SymbolX
		opponentID := playerID
		r.srv.persistAsync(r.id, "record_opponent", func(ctx context.Context) error {
			return r.srv.persist.RecordOpponent(ctx, r.id, opponentID)
		})
		r.broadcastPlayerData()
		r.broadcast(Start{Type: "start", RoomID: r.id, Board: r.board, Turn: string(r.turn)})
		log.Info().Str("room_id", r.id).Str("player_id", playerID).Msg("opponent joined, game started")
		return
	}

	r.srv.sendError(c, "room_full")
}

func (r *Room) handleMove(playerID string, cell int) {
	// wrong turn, wrong status, occupied or out-of-range cells are all
	// ignored without a reply: the board broadcast is authoritative
	if r.status != roomPlaying {
		return
	}
	slot := r.slotOf(playerID)
	if slot < 0 {
		return
	}
	sym := symbolForSlot(slot)
	if sym != r.turn {
		return
	}
	if !r.board.Place(cell, sym) {
		return
	}
	r.turn = r.turn.Other()
	r.broadcast(MoveUpdate{
		Type:      "move",
		CellIndex: cell,
		Symbol:    string(sym),
		Board:     r.board,
		Turn:      string(r.turn),
	})
	if winner, over := game.Evaluate(r.board); over {
		r.finish(slotForSymbol(winner), "")
	}
}

func (r *Room) handleChat(senderID, text string) {
	entry := ChatEntry{SenderID: senderID, Text: text, TimestampMS: time.Now().UnixMilli()}
	r.chatLog = append(r.chatLog, entry)
	r.broadcast(ChatBroadcast{Type: "chat", ChatEntry: entry})
}

func (r *Room) handleLeave(playerID string) {
	slot := r.slotOf(playerID)
	if slot < 0 {
		return
	}
	if c := r.conns[slot]; c != nil {
		r.srv.dropBinding(c)
		r.conns[slot] = nil
	}
	switch r.status {
	case roomPlaying:
		r.finish(1-slot, ReasonOpponentLeft)
	case roomWaiting:
		if slot == 0 {
			r.deleteRoom()
		}
	}
}

func (r *Room) handleDisconnect(c *client) {
	slot := -1
	for i, cc := range r.conns {
		if cc == c {
			slot = i
		}
	}
	if slot < 0 {
		// already superseded by a reconnect
		return
	}
	r.conns[slot] = nil
	playerID := r.players[slot]
	switch r.status {
	case roomPlaying:
		r.scheduleGrace(playerID)
		log.Info().Str("room_id", r.id).Str("player_id", playerID).Dur("grace", r.srv.grace).Msg("player disconnected, grace started")
	case roomWaiting:
		if slot == 0 {
			r.deleteRoom()
		}
	}
}

func (r *Room) handleRematch(playerID string) {
	if r.status != roomFinished {
		return
	}
	if r.slotOf(playerID) < 0 {
		return
	}
	for _, v := range r.rematchVotes {
		if v == playerID {
			return
		}
	}
	r.rematchVotes = append(r.rematchVotes, playerID)
	r.broadcast(RematchUpdate{Type: "rematchUpdate", Votes: len(r.rematchVotes), Needed: 2})
	if len(r.rematchVotes) == 2 {
		r.startRematch()
	}
}

// startRematch allocates a fresh room: the first voter takes slot 0 (X),
// the second slot 1 (O). The old room is discarded.
func (r *Room) startRematch() {
	first, second := r.rematchVotes[0], r.rematchVotes[1]
	next := newRoom(r.srv, store.NewID(), [2]string{first, second}, roomPlaying)
	next.conns[0] = r.connOf(first)
	next.conns[1] = r.connOf(second)

	creatorID := first
	opponentID := second
	r.srv.persistAsync(next.id, "create_rematch", func(ctx context.Context) error {
		if err := r.srv.persist.CreateMatchWithID(ctx, next.id, creatorID); err != nil {
			return err
		}
		return r.srv.persist.RecordOpponent(ctx, next.id, opponentID)
	})

	r.srv.installRoom(next)
	next.broadcastPlayerData()
	next.broadcast(Start{Type: "start", RoomID: next.id, Board: next.board, Turn: string(next.turn)})
	go next.run()

	log.Info().Str("room_id", r.id).Str("next_room_id", next.id).Msg("rematch started")
	r.conns = [2]*client{}
	r.srv.removeRoom(r)
}

func (r *Room) handleGraceExpired(playerID string) {
	if _, pending := r.graceTimers[playerID]; !pending {
		// cancelled by a reconnect before this event was processed
		return
	}
	delete(r.graceTimers, playerID)
	if r.status != roomPlaying {
		return
	}
	slot := r.slotOf(playerID)
	if slot < 0 || r.conns[slot] != nil {
		return
	}
	other := 1 - slot
	if r.conns[other] == nil {
		// both absent: leave the room to idle cleanup
		return
	}
	log.Info().Str("room_id", r.id).Str("player_id", playerID).Msg("grace expired, forfeiting")
	r.finish(other, ReasonOpponentDisconnected)
}

func (r *Room) handleIdleCheck() {
	if r.conns[0] != nil || r.conns[1] != nil {
		return
	}
	if time.Since(r.lastActive) < r.srv.idleAfter {
		return
	}
	log.Info().Str("room_id", r.id).Str("status", string(r.status)).Msg("idle room removed")
	if r.status == roomWaiting {
		r.deleteRoom()
		return
	}
	r.srv.removeRoom(r)
}

// finish terminates the game. winnerSlot -1 records a draw.
func (r *Room) finish(winnerSlot int, reason string) {
	r.status = roomFinished
	r.winnerSlot = winnerSlot
	var winnerID *string
	winnerSym := game.SymbolNone
	winnerPlayer := ""
	if winnerSlot >= 0 {
		winnerPlayer = r.players[winnerSlot]
		winnerID = &winnerPlayer
		winnerSym = symbolForSlot(winnerSlot)
	}
	r.srv.persistAsync(r.id, "record_result", func(ctx context.Context) error {
		return r.srv.persist.RecordResult(ctx, r.id, winnerID)
	})
	r.broadcast(GameOver{
		Type:     "gameOver",
		Winner:   string(winnerSym),
		WinnerID: winnerPlayer,
		Reason:   reason,
	})
	log.Info().Str("room_id", r.id).Str("winner_id", winnerPlayer).Str("reason", reason).Msg("game over")
}

// deleteRoom tears down an abandoned waiting room together with its
// persisted record.
func (r *Room) deleteRoom() {
	r.srv.persistAsync(r.id, "delete_match", func(ctx context.Context) error {
		return r.srv.persist.DeleteMatch(ctx, r.id)
	})
	r.srv.removeRoom(r)
}

func (r *Room) scheduleGrace(playerID string) {
	if _, pending := r.graceTimers[playerID]; pending {
		return
	}
	pid := playerID
	r.graceTimers[playerID] = time.AfterFunc(r.srv.grace, func() {
		r.post(roomEvent{kind: evGraceExpired, playerID: pid})
	})
}

// cancelGrace is idempotent: cancelling twice, or after the timer fired,
// is a no-op. A fired-but-unprocessed expiry event is neutralized by the
// map check in handleGraceExpired.
func (r *Room) cancelGrace(playerID string) {
	if t := r.graceTimers[playerID]; t != nil {
		t.Stop()
		delete(r.graceTimers, playerID)
	}
}

func (r *Room) stopGraceTimers() {
	for pid, t := range r.graceTimers {
		t.Stop()
		delete(r.graceTimers, pid)
	}
}

func (r *Room) slotOf(playerID string) int {
	for i, p := range r.players {
		if p != "" && p == playerID {
			return i
		}
	}
	return -1
}

func (r *Room) connOf(playerID string) *client {
	if slot := r.slotOf(playerID); slot >= 0 {
		return r.conns[slot]
	}
	return nil
}

func symbolForSlot(slot int) game.Symbol {
	if slot == 0 {
		return game.SymbolX
	}
	return game.SymbolO
}

func slotForSymbol(sym game.Symbol) int {
	switch sym {
	case game.SymbolX:
		return 0
	case game.SymbolO:
		return 1
	default:
		return -1
	}
}

func (r *Room) broadcastPlayerData() {
	players := []PlayerInfo{}
	for slot, id := range r.players {
		if id != "" {
			players = append(players, PlayerInfo{PlayerID: id, Symbol: string(symbolForSlot(slot))})
		}
	}
	r.broadcast(PlayerData{Type: "playerData", Players: players})
}

func (r *Room) broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	for _, c := range r.conns {
		if c != nil {
			safeSend(c.send, msg)
		}
	}
}

func (r *Room) sendTo(c *client, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	safeSend(c.send, msg)
}
