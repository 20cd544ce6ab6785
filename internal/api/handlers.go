package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chatlog/chatlog/internal/observability"
	"github.com/chatlog/chatlog/internal/storage"
)

// appendRequest is the JSON body for POST /api/messages.
type appendRequest struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"` // RFC3339Nano; defaults to now
}

// appendResponse is the JSON body returned for POST /api/messages.
type appendResponse struct {
	ID       int64 `json:"id,omitempty"`
	Inserted bool  `json:"inserted"`
}

type healthResponse struct {
	Status   string           `json:"status"`
	Uptime   string           `json:"uptime"`
	Counters map[string]int64 `json:"counters"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Uptime:   time.Since(s.started).String(),
		Counters: s.metrics.Snapshot(),
	})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Content == "" {
		s.respondError(w, http.StatusBadRequest, "content required")
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, req.Timestamp)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid timestamp, want RFC3339")
			return
		}
		ts = parsed
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.defSession
	}

	id, inserted, err := s.messages.AppendAt(r.Context(), req.Role, req.Content, sessionID, ts)
	if errors.Is(err, storage.ErrInvalidRole) {
		s.respondError(w, http.StatusBadRequest, "role must be user, assistant or system")
		return
	}
	if err != nil {
		s.log.Error("append message", observability.Err(err))
		s.respondError(w, http.StatusInternalServerError, "append failed")
		return
	}

	if !inserted {
		s.metrics.Increment(observability.CounterDuplicates)
		s.respondJSON(w, http.StatusOK, appendResponse{Inserted: false})
		return
	}
	s.metrics.Increment(observability.CounterAppends)
	s.respondJSON(w, http.StatusCreated, appendResponse{ID: id, Inserted: true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := s.listLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	msgs, err := s.messages.List(r.Context(), limit, r.URL.Query().Get("session_id"))
	if err != nil {
		s.log.Error("list messages", observability.Err(err))
		s.respondError(w, http.StatusInternalServerError, "list failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.messages.Stats(r.Context())
	if err != nil {
		s.log.Error("stats", observability.Err(err))
		s.respondError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusCreated, map[string]string{
		"session_id": uuid.NewString(),
	})
}

func (s *Server) handleKeychainKeys(w http.ResponseWriter, r *http.Request) {
	s.metrics.Increment(observability.CounterKeychainOps)

	keys, err := s.keychain.Keys(r.Context())
	if err != nil {
		s.log.Error("keychain keys", observability.Err(err))
		s.respondError(w, http.StatusInternalServerError, "keychain failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"keys": keys})
}

func (s *Server) handleKeychainGet(w http.ResponseWriter, r *http.Request) {
	s.metrics.Increment(observability.CounterKeychainOps)
	key := chi.URLParam(r, "key")

	value, err := s.keychain.Lookup(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "key not found")
		return
	}
	if err != nil {
		s.log.Error("keychain get", observability.Err(err))
		s.respondError(w, http.StatusInternalServerError, "keychain failed")
		return
	}
	s.respondJSON(w, http.StatusOK, storage.Item{Key: key, Value: value})
}

func (s *Server) handleKeychainSet(w http.ResponseWriter, r *http.Request) {
	s.metrics.Increment(observability.CounterKeychainOps)
	key := chi.URLParam(r, "key")

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.keychain.Set(r.Context(), key, body.Value); err != nil {
		s.log.Error("keychain set", observability.Err(err))
		s.respondError(w, http.StatusInternalServerError, "keychain failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKeychainDelete(w http.ResponseWriter, r *http.Request) {
	s.metrics.Increment(observability.CounterKeychainOps)
	key := chi.URLParam(r, "key")

	err := s.keychain.Delete(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "key not found")
		return
	}
	if err != nil {
		s.log.Error("keychain delete", observability.Err(err))
		s.respondError(w, http.StatusInternalServerError, "keychain failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
