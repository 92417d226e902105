package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gridmatch/internal/store"
)

type stubPersister struct {
	mu      sync.Mutex
	matches map[string]*store.Match
	calls   chan string
	fail    bool
}

func newStubPersister() *stubPersister {
	return &stubPersister{
		matches: map[string]*store.Match{},
		calls:   make(chan string, 64),
	}
}

func (p *stubPersister) record(op string) {
	select {
	case p.calls <- op:
	default:
	}
}

func (p *stubPersister) failure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("persistence down")
	}
	return nil
}

func (p *stubPersister) GetMatch(_ context.Context, id string) (*store.Match, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.matches[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, store.ErrNotFound
}

func (p *stubPersister) CreateMatchWithID(_ context.Context, id, creatorID string) error {
	if err := p.failure(); err != nil {
		return err
	}
	p.record("create_match:" + id + ":" + creatorID)
	return nil
}

func (p *stubPersister) RecordOpponent(_ context.Context, matchID, opponentID string) error {
	if err := p.failure(); err != nil {
		return err
	}
	p.record("record_opponent:" + matchID + ":" + opponentID)
	return nil
}

func (p *stubPersister) RecordResult(_ context.Context, matchID string, winnerID *string) error {
	if err := p.failure(); err != nil {
		return err
	}
	winner := "draw"
	if winnerID != nil {
		winner = *winnerID
	}
	p.record("record_result:" + matchID + ":" + winner)
	return nil
}

func (p *stubPersister) DeleteMatch(_ context.Context, matchID string) error {
	if err := p.failure(); err != nil {
		return err
	}
	p.record("delete_match:" + matchID)
	return nil
}

func waitForCall(t *testing.T, p *stubPersister, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-p.calls:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for persistence call %q", want)
		}
	}
}

func newTestServer(grace time.Duration) (*Server, *stubPersister) {
	p := newStubPersister()
	return NewServer(p, grace, 10*time.Minute), p
}

// newTestRoom builds a resident room without starting its event lane, so
// tests can drive apply directly on one goroutine.
func newTestRoom(s *Server, id string, players [2]string, status roomStatus) *Room {
	r := newRoom(s, id, players, status)
	s.mu.Lock()
	s.rooms[id] = r
	s.mu.Unlock()
	return r
}

func newTestClient() *client {
	return &client{id: "test", send: make(chan []byte, 64)}
}

// nextMessage pops one queued outbound frame, failing when none is there.
func nextMessage(t *testing.T, c *client) map[string]any {
	t.Helper()
	select {
	case msg := <-c.send:
		var out map[string]any
		if err := json.Unmarshal(msg, &out); err != nil {
			t.Fatalf("unmarshal outbound %q: %v", msg, err)
		}
		return out
	default:
		t.Fatal("no outbound message queued")
		return nil
	}
}

// nextMessageOfType skips frames until one of the wanted type shows up.
func nextMessageOfType(t *testing.T, c *client, wantType string) map[string]any {
	t.Helper()
	for i := 0; i < 32; i++ {
		select {
		case msg := <-c.send:
			var out map[string]any
			if err := json.Unmarshal(msg, &out); err != nil {
				t.Fatalf("unmarshal outbound %q: %v", msg, err)
			}
			if out["type"] == wantType {
				return out
			}
		default:
			t.Fatalf("no %q message queued", wantType)
		}
	}
	t.Fatalf("gave up looking for %q", wantType)
	return nil
}

func drain(c *client) []map[string]any {
	var out []map[string]any
	for {
		select {
		case msg := <-c.send:
			var m map[string]any
			_ = json.Unmarshal(msg, &m)
			out = append(out, m)
		default:
			return out
		}
	}
}

func assertNoMessageOfType(t *testing.T, msgs []map[string]any, badType string) {
	t.Helper()
	for _, m := range msgs {
		if m["type"] == badType {
			t.Fatalf("unexpected %q message: %v", badType, m)
		}
	}
}

func boardFromMessage(t *testing.T, m map[string]any) []string {
	t.Helper()
	raw, ok := m["board"].([]any)
	if !ok {
		t.Fatalf("message has no board: %v", m)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}

// awaitMessageOfType blocks until a frame of the wanted type arrives on
// the client's send queue, for tests that run a live event lane.
func awaitMessageOfType(t *testing.T, c *client, wantType string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-c.send:
			var out map[string]any
			if err := json.Unmarshal(msg, &out); err != nil {
				t.Fatalf("unmarshal outbound %q: %v", msg, err)
			}
			if out["type"] == wantType {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q message", wantType)
		}
	}
}
