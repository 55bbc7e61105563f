package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayusman/jabcam/internal/app"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/session"
	"github.com/ayusman/jabcam/internal/store"
)

// SettingEnabled is the settings key remembering whether background
// detection was left on.
const SettingEnabled = "enabled"

// Controller is the part of the app the dashboard can read and steer.
type Controller interface {
	Status() app.Status
	SetEnabled(enabled bool)
	Settings() app.Settings
	ApplySettings(s app.Settings) error
}

// StatusHandler serves /api/status.
type StatusHandler struct {
	ctl   Controller
	store *store.Store
}

// NewStatusHandler creates a StatusHandler. s may be nil; when set, the
// enabled flag is remembered across restarts.
func NewStatusHandler(ctl Controller, s *store.Store) *StatusHandler {
	return &StatusHandler{ctl: ctl, store: s}
}

type setStatusRequest struct {
	Enabled *bool `json:"enabled"`
}

// ServeHTTP handles GET /api/status and PUT /api/status {"enabled": bool}.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.ctl.Status())
	case http.MethodPut, http.MethodPost:
		var req setStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}

		h.ctl.SetEnabled(*req.Enabled)
		if h.store != nil {
			if err := h.store.Settings().Set(SettingEnabled, strconv.FormatBool(*req.Enabled)); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to save setting")
				return
			}
		}
		writeJSON(w, http.StatusOK, h.ctl.Status())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ConfigHandler serves the settings new sessions start with.
type ConfigHandler struct {
	ctl Controller
}

// NewConfigHandler creates a ConfigHandler.
func NewConfigHandler(ctl Controller) *ConfigHandler {
	return &ConfigHandler{ctl: ctl}
}

type rulesBody struct {
	Lives         int     `json:"lives"`
	WindowSeconds float64 `json:"window_seconds"`
	PointsDivisor float64 `json:"points_divisor"`
}

type configBody struct {
	Mode  session.Mode `json:"mode"`
	Punch punch.Config `json:"punch"`
	Rules rulesBody    `json:"rules"`
}

func toConfigBody(s app.Settings) configBody {
	return configBody{
		Mode:  s.Mode,
		Punch: s.Punch,
		Rules: rulesBody{
			Lives:         s.Rules.Lives,
			WindowSeconds: s.Rules.Window,
			PointsDivisor: s.Rules.PointsDivisor,
		},
	}
}

// ServeHTTP handles GET /api/config and PUT /api/config. A PUT body is
// merged over the current settings; fields it omits keep their value.
// Changes made here last until the config file is next reloaded.
func (h *ConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toConfigBody(h.ctl.Settings()))
	case http.MethodPut:
		body := toConfigBody(h.ctl.Settings())
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		mode, ok := session.LookupMode(string(body.Mode))
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown mode "+strconv.Quote(string(body.Mode)))
			return
		}

		next := app.Settings{
			Mode:  mode,
			Punch: body.Punch,
			Rules: session.Rules{
				Lives:         body.Rules.Lives,
				Window:        body.Rules.WindowSeconds,
				PointsDivisor: body.Rules.PointsDivisor,
			},
		}
		if err := h.ctl.ApplySettings(next); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toConfigBody(h.ctl.Settings()))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
