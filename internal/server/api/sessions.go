package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/jabcam/internal/store"
)

// DefaultSessionLimit caps GET /api/sessions when no limit is given.
const DefaultSessionLimit = 50

// SessionHandler handles HTTP requests for recorded sessions.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

// ServeHTTP routes /api/sessions, /api/sessions/{id},
// /api/sessions/{id}/punches and /api/sessions/{id}/chart.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/sessions")

	switch len(parts) {
	case 0:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 2:
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "punches":
			h.punches(w, r, parts[0])
		case "chart":
			h.chart(w, r, parts[0])
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

type sessionResponse struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"`
	StartedAt    string          `json:"started_at"`
	EndedAt      string          `json:"ended_at,omitempty"`
	Duration     float64         `json:"duration_seconds,omitempty"`
	LeftPunches  int             `json:"left_punches"`
	RightPunches int             `json:"right_punches"`
	Score        int             `json:"score"`
	Lives        int             `json:"lives"`
	MeanSpeed    float64         `json:"mean_speed"`
	MaxSpeed     float64         `json:"max_speed"`
	Config       json.RawMessage `json:"config,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type punchResponse struct {
	ID        string  `json:"id"`
	Side      string  `json:"side"`
	Speed     float64 `json:"speed"`
	SpeedAvg  float64 `json:"speed_avg"`
	Points    int     `json:"points"`
	Timestamp float64 `json:"timestamp"`
}

type listPunchesResponse struct {
	SessionID string          `json:"session_id"`
	Punches   []punchResponse `json:"punches"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:           s.ID,
		Mode:         s.Mode,
		StartedAt:    formatTime(s.StartedAt),
		LeftPunches:  s.LeftPunches,
		RightPunches: s.RightPunches,
		Score:        s.Score,
		Lives:        s.Lives,
		MeanSpeed:    s.MeanSpeed,
		MaxSpeed:     s.MaxSpeed,
		Config:       s.Config,
	}
	if s.EndedAt != nil {
		resp.EndedAt = formatTime(*s.EndedAt)
		resp.Duration = s.EndedAt.Sub(s.StartedAt).Seconds()
	}
	return resp
}

// list handles GET /api/sessions?limit=N, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", DefaultSessionLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// delete handles DELETE /api/sessions/{id}. Its punches go with it.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// punches handles GET /api/sessions/{id}/punches.
func (h *SessionHandler) punches(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	punches, err := h.store.Punches().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list punches")
		return
	}

	response := listPunchesResponse{
		SessionID: id,
		Punches:   make([]punchResponse, 0, len(punches)),
	}
	for _, p := range punches {
		response.Punches = append(response.Punches, punchResponse{
			ID:        p.ID,
			Side:      p.Side,
			Speed:     p.Speed,
			SpeedAvg:  p.SpeedAvg,
			Points:    p.Points,
			Timestamp: p.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// chart handles GET /api/sessions/{id}/chart with an HTML speed chart.
func (h *SessionHandler) chart(w http.ResponseWriter, r *http.Request, id string) {
	s, ok := h.lookup(w, id)
	if !ok {
		return
	}

	punches, err := h.store.Punches().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list punches")
		return
	}

	page, err := renderSpeedChart(s, punches)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// lookup fetches a session, writing the error response when it fails.
func (h *SessionHandler) lookup(w http.ResponseWriter, id string) (*store.Session, bool) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil, false
	}
	return s, true
}
