package settings

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid settings")

// Units selects how temperatures are shown.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// AccentPalette lists the accent colours a user may choose from.
var AccentPalette = []string{"#06b6d4", "#0ea5a4", "#ef4444", "#f97316", "#7c3aed", "#16a34a"}

// Languages maps supported language codes to their display names.
var Languages = map[string]string{
	"en": "English",
	"ta": "Tamil",
	"hi": "Hindi",
}

// Settings are a user's display preferences.
type Settings struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Language      string `json:"language"`
	Units         Units  `json:"units"`
	Notifications bool   `json:"notifications"`
	Accent        string `json:"accent"`
	ShareAnon     bool   `json:"shareAnon"`
}

// Defaults returns the settings used before anything has been saved.
func Defaults() Settings {
	return Settings{
		Language:      "en",
		Units:         UnitsMetric,
		Notifications: true,
		Accent:        AccentPalette[0],
		ShareAnon:     true,
	}
}

// Validate checks every field against its allowed values.
func (s Settings) Validate() error {
	if _, ok := Languages[s.Language]; !ok {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalid, s.Language)
	}
	if s.Units != UnitsMetric && s.Units != UnitsImperial {
		return fmt.Errorf("%w: unsupported units %q", ErrInvalid, s.Units)
	}
	if !slices.Contains(AccentPalette, strings.ToLower(s.Accent)) {
		return fmt.Errorf("%w: accent %q not in palette", ErrInvalid, s.Accent)
	}
	if s.Email != "" && !strings.Contains(s.Email, "@") {
		return fmt.Errorf("%w: malformed email %q", ErrInvalid, s.Email)
	}
	return nil
}

// TempUnit is the suffix shown after a temperature.
func (s Settings) TempUnit() string {
	if s.Units == UnitsImperial {
		return "°F"
	}
	return "°C"
}

// ConvertTemp converts a Celsius temperature into the user's units, rounded
// to the nearest degree.
func (s Settings) ConvertTemp(c int) int {
	if s.Units != UnitsImperial {
		return c
	}
	f := c*9 + 160 // 5 * (c*9/5 + 32)
	if f >= 0 {
		return (f + 2) / 5
	}
	return (f - 2) / 5
}
