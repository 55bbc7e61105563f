// Package main provides a keyboard plugin that turns punches into key
// presses. It uses AppleScript on macOS and xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Side   string          `json:"side"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeystrokeParams defines parameters for keystroke and shortcut actions.
// Key may be omitted when LeftKey or RightKey matches the punching side.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	LeftKey   string   `json:"left_key"`
	RightKey  string   `json:"right_key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// key picks the key for side.
func (p KeystrokeParams) key(side string) string {
	switch {
	case side == "left" && p.LeftKey != "":
		return p.LeftKey
	case side == "right" && p.RightKey != "":
		return p.RightKey
	}
	return p.Key
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

var xdotoolModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	switch req.Action {
	case "keystroke", "shortcut":
		key, err := handleKeystroke(req.Side, req.Params)
		if err != nil {
			writeResponse(Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
			return
		}
		data, _ := json.Marshal(map[string]string{"key": key, "side": req.Side})
		writeResponse(Response{Success: true, Data: data})
	default:
		writeResponse(Response{Error: fmt.Sprintf("unknown action: %s", req.Action)})
	}
}

func handleKeystroke(side string, params json.RawMessage) (string, error) {
	var p KeystrokeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return "", fmt.Errorf("failed to parse params: %w", err)
		}
	}

	key := p.key(side)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}

	switch runtime.GOOS {
	case "darwin":
		return key, run("osascript", "-e", appleScript(key, p.Modifiers))
	case "linux":
		return key, run("xdotool", "key", xdotoolChord(key, p.Modifiers))
	default:
		return "", fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}

// appleScript generates an AppleScript keystroke for key and modifiers.
func appleScript(key string, modifiers []string) string {
	var mods []string
	for _, mod := range modifiers {
		if m, ok := appleModifiers[strings.ToLower(mod)]; ok {
			mods = append(mods, m)
		}
	}

	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, key, strings.Join(mods, ", "))
}

// xdotoolChord builds an xdotool key chord such as "ctrl+shift+a".
func xdotoolChord(key string, modifiers []string) string {
	parts := make([]string, 0, len(modifiers)+1)
	for _, mod := range modifiers {
		if m, ok := xdotoolModifiers[strings.ToLower(mod)]; ok {
			parts = append(parts, m)
		}
	}
	return strings.Join(append(parts, key), "+")
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, string(output))
	}
	return nil
}
