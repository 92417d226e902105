package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gridmatch/internal/store"
)

type createMatchRequest struct {
	PlayerID string `json:"player_id"`
}

// createMatchHandler allocates a match record for an existing player and
// returns the room identifier the creator should connect to.
func createMatchHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayerID == "" {
			writeHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if _, err := st.GetPlayer(r.Context(), req.PlayerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeHTTPError(w, http.StatusNotFound, "player_not_found")
				return
			}
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		matchID, err := st.CreateMatch(r.Context(), req.PlayerID)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"match_id": matchID})
	}
}

func getMatchHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := st.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeHTTPError(w, http.StatusNotFound, "match_not_found")
				return
			}
			writeHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          m.ID,
			"creator_id":  m.CreatorID,
			"opponent_id": m.OpponentID,
			"winner_id":   m.WinnerID,
			"status":      m.Status,
			"created_at":  m.CreatedAt,
			"ended_at":    m.EndedAt,
		})
	}
}

func healthHandler(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			writeHTTPError(w, http.StatusServiceUnavailable, "db_unreachable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func writeHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}
