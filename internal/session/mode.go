package session

// Mode selects the game rules applied on top of punch detection.
type Mode string

const (
	// ModeFreePlay reports punches without scoring or lives.
	ModeFreePlay Mode = "free-play"
	// ModeScoring awards points for every punch based on its speed.
	ModeScoring Mode = "scoring-mode"
	// ModeSurvival scores like ModeScoring and takes a life for every
	// window that passes without a punch.
	ModeSurvival Mode = "survival"
	// ModeMultiplayer is accepted but currently plays as ModeFreePlay.
	ModeMultiplayer Mode = "multiplayer"
)

var knownModes = map[Mode]bool{
	ModeFreePlay:    true,
	ModeScoring:     true,
	ModeSurvival:    true,
	ModeMultiplayer: true,
}

// LookupMode reports whether s names a known mode. An empty string is
// ModeFreePlay.
func LookupMode(s string) (Mode, bool) {
	if s == "" {
		return ModeFreePlay, true
	}
	m := Mode(s)
	return m, knownModes[m]
}

// ParseMode returns the mode named by s, falling back to ModeFreePlay for
// anything unknown.
func ParseMode(s string) Mode {
	m, ok := LookupMode(s)
	if !ok {
		return ModeFreePlay
	}
	return m
}

// Rules returns the mode whose rules actually apply.
func (m Mode) Rules() Mode {
	if m == ModeMultiplayer || !knownModes[m] {
		return ModeFreePlay
	}
	return m
}

// Scores reports whether punches earn points in this mode.
func (m Mode) Scores() bool {
	r := m.Rules()
	return r == ModeScoring || r == ModeSurvival
}

// HasLives reports whether the mode tracks lives.
func (m Mode) HasLives() bool {
	return m.Rules() == ModeSurvival
}
