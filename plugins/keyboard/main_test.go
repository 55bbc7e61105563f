package main

import "testing"

func TestKeystrokeParams_Key(t *testing.T) {
	p := KeystrokeParams{Key: "space", LeftKey: "a"}

	tests := []struct {
		side string
		want string
	}{
		{"left", "a"},
		{"right", "space"},
		{"", "space"},
	}
	for _, tt := range tests {
		if got := p.key(tt.side); got != tt.want {
			t.Errorf("key(%q) = %q, want %q", tt.side, got, tt.want)
		}
	}
}

func TestAppleScript(t *testing.T) {
	got := appleScript("k", nil)
	want := `tell application "System Events" to keystroke "k"`
	if got != want {
		t.Errorf("appleScript() = %q, want %q", got, want)
	}

	got = appleScript("k", []string{"Cmd", "shift", "hyper"})
	want = `tell application "System Events" to keystroke "k" using {command down, shift down}`
	if got != want {
		t.Errorf("appleScript() = %q, want %q", got, want)
	}
}

func TestXdotoolChord(t *testing.T) {
	if got := xdotoolChord("Left", nil); got != "Left" {
		t.Errorf("xdotoolChord() = %q, want Left", got)
	}
	if got := xdotoolChord("a", []string{"control", "SHIFT"}); got != "ctrl+shift+a" {
		t.Errorf("xdotoolChord() = %q, want ctrl+shift+a", got)
	}
}

func TestHandleKeystroke_RequiresKey(t *testing.T) {
	if _, err := handleKeystroke("left", []byte(`{"right_key":"d"}`)); err == nil {
		t.Error("expected an error when no key applies to the side")
	}
	if _, err := handleKeystroke("left", []byte(`not json`)); err == nil {
		t.Error("expected an error for invalid params")
	}
}
