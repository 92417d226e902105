package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gridmatch/internal/testutil"
	"gridmatch/internal/ws"
)

func TestCreateMatchEndpoint(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	playerID, err := st.CreatePlayer(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}

	router := newRouter(st, ws.NewServer(st, 10*time.Second, 10*time.Minute))
	body, _ := json.Marshal(map[string]string{"player_id": playerID})
	req := httptest.NewRequest(http.MethodPost, "/api/matches", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		MatchID string `json:"match_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MatchID == "" {
		t.Fatal("match_id empty")
	}

	m, err := st.GetMatch(context.Background(), resp.MatchID)
	if err != nil {
		t.Fatalf("get created match: %v", err)
	}
	if m.CreatorID != playerID || m.Status != "waiting" {
		t.Fatalf("unexpected match record: %+v", m)
	}
}

func TestCreateMatchRejectsUnknownPlayer(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	router := newRouter(st, ws.NewServer(st, 10*time.Second, 10*time.Minute))
	body, _ := json.Marshal(map[string]string{"player_id": "ghost"})
	req := httptest.NewRequest(http.MethodPost, "/api/matches", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateMatchRejectsBadBody(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	router := newRouter(st, ws.NewServer(st, 10*time.Second, 10*time.Minute))
	req := httptest.NewRequest(http.MethodPost, "/api/matches", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetMatchEndpoint(t *testing.T) {
	st, cleanup := testutil.OpenTestStore(t)
	defer cleanup()

	playerID, err := st.CreatePlayer(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	matchID, err := st.CreateMatch(context.Background(), playerID)
	if err != nil {
		t.Fatalf("create match: %v", err)
	}

	router := newRouter(st, ws.NewServer(st, 10*time.Second, 10*time.Minute))
	req := httptest.NewRequest(http.MethodGet, "/api/matches/"+matchID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != matchID || resp["status"] != "waiting" {
		t.Fatalf("unexpected response: %v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/matches/does-not-exist", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown match", rec.Code)
	}
}
