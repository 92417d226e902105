package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gridmatch/internal/store"
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

type binding struct {
	room     *Room
	playerID string
}

// Server owns the room store and the connection registry. Rooms process
// their own events on a per-room goroutine; the server only routes.
type Server struct {
	persist   Persister
	upgrader  websocket.Upgrader
	grace     time.Duration
	idleAfter time.Duration

	mu       sync.Mutex
	rooms    map[string]*Room
	bindings map[*client]binding
}

func NewServer(p Persister, grace, idleAfter time.Duration) *Server {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	if idleAfter <= 0 {
		idleAfter = 10 * time.Minute
	}
	return &Server{
		persist:   p,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		grace:     grace,
		idleAfter: idleAfter,
		rooms:     map[string]*Room{},
		bindings:  map[*client]binding{},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, 16)}
	log.Debug().Str("conn_id", c.id).Msg("connection opened")

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer func() {
		b, bound := s.dropBinding(c)
		if bound && b.room != nil {
			b.room.post(roomEvent{kind: evDisconnect, c: c})
		}
		safeClose(c.send)
		_ = c.conn.Close()
		log.Debug().Str("conn_id", c.id).Msg("connection closed")
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(c, msg)
	}
}

func (s *Server) writeLoop(c *client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) dispatch(c *client, msg []byte) {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &base); err != nil {
		s.sendError(c, "bad_message")
		return
	}
	switch base.Type {
	case "join":
		var join JoinMessage
		if err := json.Unmarshal(msg, &join); err != nil || join.RoomID == "" || join.PlayerID == "" {
			s.sendError(c, "bad_message")
			return
		}
		s.handleJoin(c, join)
	case "move":
		var move MoveMessage
		if err := json.Unmarshal(msg, &move); err != nil {
			s.sendError(c, "bad_message")
			return
		}
		if b, ok := s.bindingOf(c); ok {
			b.room.post(roomEvent{kind: evMove, playerID: b.playerID, cell: move.CellIndex})
		}
	case "chat":
		var chat ChatMessage
		if err := json.Unmarshal(msg, &chat); err != nil || chat.Text == "" {
			s.sendError(c, "bad_message")
			return
		}
		if b, ok := s.bindingOf(c); ok {
			b.room.post(roomEvent{kind: evChat, playerID: b.playerID, text: chat.Text})
		}
	case "leave":
		if b, ok := s.bindingOf(c); ok {
			b.room.post(roomEvent{kind: evLeave, playerID: b.playerID, c: c})
		}
	case "rematch":
		if b, ok := s.bindingOf(c); ok {
			b.room.post(roomEvent{kind: evRematch, playerID: b.playerID})
		}
	case "heartbeat":
		s.sendJSON(c, HeartbeatAck{Type: "heartbeat_ack"})
	default:
		s.sendError(c, "bad_message")
	}
}

func (s *Server) handleJoin(c *client, join JoinMessage) {
	room, err := s.roomFor(context.Background(), join.RoomID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("room_id", join.RoomID).Msg("room hydration failed")
		}
		s.sendError(c, "room_not_found")
		return
	}
	room.post(roomEvent{kind: evJoin, playerID: join.PlayerID, c: c})
}

// roomFor returns the live room, hydrating it from the persisted match
// record when it is not resident.
func (s *Server) roomFor(ctx context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	if room := s.rooms[roomID]; room != nil {
		s.mu.Unlock()
		return room, nil
	}
	s.mu.Unlock()

	m, err := s.persist.GetMatch(ctx, roomID)
	if err != nil {
		return nil, err
	}
	room := roomFromMatch(s, m)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.rooms[roomID]; existing != nil {
		// lost the hydration race
		close(room.done)
		return existing, nil
	}
	s.rooms[roomID] = room
	go room.run()
	log.Info().Str("room_id", roomID).Str("status", string(room.status)).Msg("room hydrated")
	return room, nil
}

// installRoom registers a freshly built room (the rematch path) and moves
// the given clients' registry entries onto it.
func (s *Server) installRoom(r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.id] = r
	for slot, c := range r.conns {
		if c != nil {
			s.bindings[c] = binding{room: r, playerID: r.players[slot]}
		}
	}
}

// removeRoom drops the room from the store map and stops its event lane.
// Safe to call from within the room's own lane.
func (s *Server) removeRoom(r *Room) {
	s.mu.Lock()
	if s.rooms[r.id] == r {
		delete(s.rooms, r.id)
	}
	for c, b := range s.bindings {
		if b.room == r {
			delete(s.bindings, c)
		}
	}
	s.mu.Unlock()
	close(r.done)
}

func (s *Server) bind(c *client, r *Room, playerID string) {
	s.mu.Lock()
	s.bindings[c] = binding{room: r, playerID: playerID}
	s.mu.Unlock()
}

func (s *Server) bindingOf(c *client) (binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[c]
	return b, ok
}

func (s *Server) dropBinding(c *client) (binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bindings[c]
	delete(s.bindings, c)
	return b, ok
}

// StartJanitor periodically nudges every resident room to check itself
// for idle expiry.
func (s *Server) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepIdle()
			}
		}
	}()
}

func (s *Server) sweepIdle() {
	s.mu.Lock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.Unlock()
	for _, r := range rooms {
		// non-blocking: a busy lane will be swept next tick
		select {
		case r.eventCh <- roomEvent{kind: evIdleCheck}:
		default:
		}
	}
}

// persistAsync issues a persistence call off the event lane. The
// in-memory state is authoritative; failures are logged and swallowed.
func (s *Server) persistAsync(roomID, op string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Str("room_id", roomID).Str("op", op).Msg("persistence call failed")
		}
	}()
}

func (s *Server) sendError(c *client, message string) {
	s.sendJSON(c, ErrorMessage{Type: "error", Message: message})
}

func (s *Server) sendJSON(c *client, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		return
	}
	safeSend(c.send, msg)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	ch <- msg
}
