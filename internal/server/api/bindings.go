package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/jabcam/internal/plugin"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/ayusman/jabcam/internal/store"
)

// PluginResolver checks that a plugin exists and supports an action.
type PluginResolver interface {
	Resolve(name, action string) (*plugin.Plugin, error)
}

// BindingHandler handles HTTP requests for side-to-action bindings.
type BindingHandler struct {
	store   *store.Store
	plugins PluginResolver
}

// NewBindingHandler creates a new BindingHandler. plugins may be nil, in
// which case plugin names are not checked.
func NewBindingHandler(s *store.Store, plugins PluginResolver) *BindingHandler {
	return &BindingHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/bindings")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

type createBindingRequest struct {
	Side    string          `json:"side"`
	Plugin  string          `json:"plugin"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params"`
	Enabled *bool           `json:"enabled"`
}

type updateBindingRequest struct {
	Side    string          `json:"side"`
	Plugin  string          `json:"plugin"`
	Action  string          `json:"action"`
	Params  json.RawMessage `json:"params"`
	Enabled *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID        string          `json:"id"`
	Side      string          `json:"side"`
	Plugin    string          `json:"plugin"`
	Action    string          `json:"action"`
	Params    json.RawMessage `json:"params"`
	Enabled   bool            `json:"enabled"`
	CreatedAt string          `json:"created_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

func toBindingResponse(b *store.Binding) bindingResponse {
	params := b.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:        b.ID,
		Side:      b.Side,
		Plugin:    b.PluginName,
		Action:    b.ActionName,
		Params:    params,
		Enabled:   b.Enabled,
		CreatedAt: formatTime(b.CreatedAt),
	}
}

// list handles GET /api/bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(bindings)),
	}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{id}.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// create handles POST /api/bindings.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Side == "" {
		writeError(w, http.StatusBadRequest, "side is required")
		return
	}
	if req.Plugin == "" {
		writeError(w, http.StatusBadRequest, "plugin is required")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	b := &store.Binding{
		ID:         uuid.New().String(),
		Side:       req.Side,
		PluginName: req.Plugin,
		ActionName: req.Action,
		Params:     req.Params,
		Enabled:    true,
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if !h.validate(w, b) {
		return
	}

	if err := h.store.Bindings().Create(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}

	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

// update handles PUT /api/bindings/{id}. Omitted fields keep their value.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Side != "" {
		b.Side = req.Side
	}
	if req.Plugin != "" {
		b.PluginName = req.Plugin
	}
	if req.Action != "" {
		b.ActionName = req.Action
	}
	if req.Params != nil {
		b.Params = req.Params
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if !h.validate(w, b) {
		return
	}

	if err := h.store.Bindings().Update(b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// delete handles DELETE /api/bindings/{id}.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// validate normalises the side and checks the plugin action, writing a 400
// when the binding cannot be used.
func (h *BindingHandler) validate(w http.ResponseWriter, b *store.Binding) bool {
	side, err := punch.ParseHandSide(b.Side)
	if err != nil {
		writeError(w, http.StatusBadRequest, "side must be left or right")
		return false
	}
	b.Side = side.String()

	if len(b.Params) > 0 && !json.Valid(b.Params) {
		writeError(w, http.StatusBadRequest, "params must be valid JSON")
		return false
	}

	if h.plugins != nil {
		if _, err := h.plugins.Resolve(b.PluginName, b.ActionName); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
	}
	return true
}
