package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/jabcam/internal/plugin"
)

// fakePlugins knows a single keyboard plugin with a keystroke action.
type fakePlugins struct{}

func (fakePlugins) Resolve(name, action string) (*plugin.Plugin, error) {
	if name != "keyboard" {
		return nil, fmt.Errorf("%w: %s", plugin.ErrPluginNotFound, name)
	}
	if action != "keystroke" {
		return nil, fmt.Errorf("%w: %s/%s", plugin.ErrActionNotSupported, name, action)
	}
	return &plugin.Plugin{Manifest: plugin.Manifest{Name: name, Actions: []string{action}}}, nil
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBindingHandler_CreateAndGet(t *testing.T) {
	handler := NewBindingHandler(newTestStore(t), fakePlugins{})

	rec := doJSON(t, handler, http.MethodPost, "/api/bindings", map[string]any{
		"side":   "Left",
		"plugin": "keyboard",
		"action": "keystroke",
		"params": map[string]string{"key": "space"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created bindingResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" {
		t.Error("expected non-empty ID in response")
	}
	if created.Side != "left" {
		t.Errorf("expected side to be normalised to 'left', got %q", created.Side)
	}
	if !created.Enabled {
		t.Error("expected new bindings to be enabled")
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got bindingResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	var params map[string]string
	if err := json.Unmarshal(got.Params, &params); err != nil {
		t.Fatalf("failed to decode params: %v", err)
	}
	if params["key"] != "space" {
		t.Errorf("expected params to round-trip, got %s", got.Params)
	}
}

func TestBindingHandler_CreateValidation(t *testing.T) {
	handler := NewBindingHandler(newTestStore(t), fakePlugins{})

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing side", map[string]any{"plugin": "keyboard", "action": "keystroke"}},
		{"missing plugin", map[string]any{"side": "left", "action": "keystroke"}},
		{"missing action", map[string]any{"side": "left", "plugin": "keyboard"}},
		{"bad side", map[string]any{"side": "middle", "plugin": "keyboard", "action": "keystroke"}},
		{"unknown plugin", map[string]any{"side": "left", "plugin": "mouse", "action": "keystroke"}},
		{"unsupported action", map[string]any{"side": "left", "plugin": "keyboard", "action": "volume"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/bindings", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d: %s", http.StatusBadRequest, rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/bindings", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}

func TestBindingHandler_WithoutResolver(t *testing.T) {
	handler := NewBindingHandler(newTestStore(t), nil)

	rec := doJSON(t, handler, http.MethodPost, "/api/bindings", map[string]any{
		"side": "right", "plugin": "anything", "action": "goes",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestBindingHandler_UpdateListDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, fakePlugins{})

	rec := doJSON(t, handler, http.MethodPost, "/api/bindings", map[string]any{
		"side": "left", "plugin": "keyboard", "action": "keystroke",
	})
	var created bindingResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/bindings/"+created.ID, map[string]any{
		"side": "right", "enabled": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var updated bindingResponse
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if updated.Side != "right" || updated.Enabled {
		t.Errorf("unexpected binding after update: %+v", updated)
	}
	if updated.Plugin != "keyboard" {
		t.Errorf("omitted fields should keep their value, got plugin %q", updated.Plugin)
	}

	enabled, err := s.Bindings().ListEnabled("right")
	if err != nil {
		t.Fatalf("ListEnabled() error = %v", err)
	}
	if len(enabled) != 0 {
		t.Error("disabled binding should not be listed as enabled")
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/bindings/"+created.ID, map[string]any{"side": "up"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for a bad side, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bindings", nil)
	var list listBindingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Bindings) != 1 {
		t.Fatalf("expected 1 binding, got %d", len(list.Bindings))
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/bindings/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestBindingHandler_NotFound(t *testing.T) {
	handler := NewBindingHandler(newTestStore(t), nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := doJSON(t, handler, method, "/api/bindings/missing", map[string]any{})
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}
