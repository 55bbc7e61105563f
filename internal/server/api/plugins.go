package api

import (
	"net/http"

	"github.com/ayusman/jabcam/internal/plugin"
)

// PluginCatalog lists discovered plugins and can rescan for new ones.
type PluginCatalog interface {
	List() []*plugin.Plugin
	Discover() error
}

// PluginHandler serves the plugin catalog.
type PluginHandler struct {
	plugins PluginCatalog
}

// NewPluginHandler creates a new PluginHandler.
func NewPluginHandler(p PluginCatalog) *PluginHandler {
	return &PluginHandler{plugins: p}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

// ServeHTTP handles GET /api/plugins and POST /api/plugins/rescan.
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/plugins")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.list(w)
	case len(parts) == 1 && parts[0] == "rescan" && r.Method == http.MethodPost:
		if err := h.plugins.Discover(); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to scan plugins")
			return
		}
		h.list(w)
	case len(parts) == 0, len(parts) == 1 && parts[0] == "rescan":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

func (h *PluginHandler) list(w http.ResponseWriter) {
	plugins := h.plugins.List()

	response := listPluginsResponse{
		Plugins: make([]pluginResponse, 0, len(plugins)),
	}
	for _, p := range plugins {
		actions := p.Manifest.Actions
		if actions == nil {
			actions = []string{}
		}
		response.Plugins = append(response.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     actions,
		})
	}

	writeJSON(w, http.StatusOK, response)
}
