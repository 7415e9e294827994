package editor

import (
	"time"

	"go.uber.org/zap"

	"github.com/odvcencio/confedit/state"
)

// Preference is the user's theme choice.
type Preference string

const (
	PreferLight Preference = "light"
	PreferDark  Preference = "dark"
	PreferAuto  Preference = "auto"
)

// Valid reports whether p is a known preference.
func (p Preference) Valid() bool {
	switch p {
	case PreferLight, PreferDark, PreferAuto:
		return true
	default:
		return false
	}
}

// Resolve reports whether p renders dark given the system preference.
func (p Preference) Resolve(systemDark bool) bool {
	if p == PreferAuto {
		return systemDark
	}
	return p == PreferDark
}

// Toggle returns the next explicit preference: auto flips away from the
// system theme, light and dark swap.
func (p Preference) Toggle(systemDark bool) Preference {
	switch p {
	case PreferAuto:
		if systemDark {
			return PreferLight
		}
		return PreferDark
	case PreferLight:
		return PreferDark
	default:
		return PreferLight
	}
}

// Palette is the presentation for one resolved theme.
type Palette struct {
	Dark        bool      `json:"dark"`
	SyntaxStyle string    `json:"syntaxStyle"`
	Brackets    [4]string `json:"brackets"`
	Indent      [4]string `json:"indent"`
}

var bracketColors = [4]string{"#ffd700", "#da70d6", "#87cefa", "#98fb98"}

var (
	lightPalette = Palette{
		SyntaxStyle: "github",
		Brackets:    bracketColors,
		Indent: [4]string{
			"rgba(255, 215, 0, 0.4)",
			"rgba(218, 112, 214, 0.35)",
			"rgba(135, 206, 250, 0.45)",
			"rgba(152, 251, 152, 0.4)",
		},
	}
	darkPalette = Palette{
		Dark:        true,
		SyntaxStyle: "onedark",
		Brackets:    bracketColors,
		Indent: [4]string{
			"rgba(255, 215, 0, 0.15)",
			"rgba(218, 112, 214, 0.12)",
			"rgba(135, 206, 250, 0.18)",
			"rgba(152, 251, 152, 0.15)",
		},
	}
)

// PaletteFor returns the palette for a resolved theme.
func PaletteFor(dark bool) Palette {
	if dark {
		return darkPalette
	}
	return lightPalette
}

// LoadPreference reads the stored theme preference, defaulting to auto.
func LoadPreference(store state.Store) Preference {
	v, ok, err := store.Get(state.KeyTheme)
	if err != nil || !ok {
		return PreferAuto
	}
	if p := Preference(v); p.Valid() {
		return p
	}
	return PreferAuto
}

// SavePreference stores p. A failed write is retried once after
// retryDelay; a second failure is logged and dropped.
func SavePreference(store state.Store, p Preference, retryDelay time.Duration, log *zap.Logger) {
	if err := store.Set(state.KeyTheme, string(p)); err == nil {
		return
	}
	time.AfterFunc(retryDelay, func() {
		if err := store.Set(state.KeyTheme, string(p)); err != nil && log != nil {
			log.Warn("persist theme preference", zap.String("theme", string(p)), zap.Error(err))
		}
	})
}
