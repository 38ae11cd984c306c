// Package settings stores the user-facing preview and preload settings in a
// TOML file with a backup copy.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/glimpse/internal/model"
)

// ErrUnknownKey is returned by Set for keys that do not exist
var ErrUnknownKey = errors.New("unknown settings key")

// Settings are the preferences a user edits in the settings form.
// WindowSize and BackgroundOpacity are percentages; AutoCloseTimer is in
// seconds with 0 meaning off.
type Settings struct {
	ModifierKey       string          `toml:"modifier_key" json:"modifierKey"`
	MacSupport        bool            `toml:"mac_support" json:"macSupport"`
	ThemeColor        string          `toml:"theme_color" json:"themeColor"`
	DarkMode          bool            `toml:"dark_mode" json:"darkMode"`
	WindowSize        int             `toml:"window_size" json:"windowSize"`
	AutoCloseTimer    int             `toml:"auto_close_timer" json:"autoCloseTimer"`
	Animations        bool            `toml:"animations" json:"animations"`
	SoundEffects      bool            `toml:"sound_effects" json:"soundEffects"`
	BackgroundOpacity int             `toml:"background_opacity" json:"backgroundOpacity"`
	LongClick         bool            `toml:"long_click" json:"longClick"`
	LongClickDuration int             `toml:"long_click_duration_ms" json:"longClickDuration"`
	Preload           PreloadSettings `toml:"preload" json:"preload"`
}

// PreloadSettings are the user-facing preload knobs
type PreloadSettings struct {
	Enabled           bool    `toml:"enabled" json:"enabled"`
	MaxLinks          int     `toml:"max_links" json:"maxLinks"`
	CacheSizeMB       int     `toml:"cache_size_mb" json:"cacheSizeMB"`
	StartDelaySeconds float64 `toml:"start_delay_seconds" json:"startDelaySeconds"`
	ShowIndicators    bool    `toml:"show_indicators" json:"showIndicators"`
}

// Default returns the settings used before the user changes anything
func Default() Settings {
	return Settings{
		ModifierKey:       "ctrl",
		MacSupport:        true,
		ThemeColor:        "#667eea",
		DarkMode:          false,
		WindowSize:        80,
		AutoCloseTimer:    0,
		Animations:        true,
		SoundEffects:      false,
		BackgroundOpacity: 60,
		LongClick:         false,
		LongClickDuration: 500,
		Preload: PreloadSettings{
			Enabled:           true,
			MaxLinks:          10,
			CacheSizeMB:       50,
			StartDelaySeconds: 2,
			ShowIndicators:    true,
		},
	}
}

var (
	modifierKeys = map[string]bool{"ctrl": true, "alt": true, "shift": true, "meta": true}
	hexColor     = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Validate clamps numeric values into range and replaces invalid choices
// with their defaults.
func (s *Settings) Validate() {
	def := Default()

	s.ModifierKey = strings.ToLower(strings.TrimSpace(s.ModifierKey))
	if !modifierKeys[s.ModifierKey] {
		s.ModifierKey = def.ModifierKey
	}
	if !hexColor.MatchString(s.ThemeColor) {
		s.ThemeColor = def.ThemeColor
	}

	s.WindowSize = clamp(s.WindowSize, 30, 100)
	s.AutoCloseTimer = clamp(s.AutoCloseTimer, 0, 60)
	s.BackgroundOpacity = clamp(s.BackgroundOpacity, 0, 100)
	s.LongClickDuration = clamp(s.LongClickDuration, 200, 2000)

	s.Preload.MaxLinks = clamp(s.Preload.MaxLinks, 1, 50)
	s.Preload.CacheSizeMB = clamp(s.Preload.CacheSizeMB, 1, 500)
	if s.Preload.StartDelaySeconds < 0 {
		s.Preload.StartDelaySeconds = 0
	}
	if s.Preload.StartDelaySeconds > 30 {
		s.Preload.StartDelaySeconds = 30
	}
}

// PreloadConfig applies the user's preload settings on top of base
func (s Settings) PreloadConfig(base model.PreloadConfig) model.PreloadConfig {
	cfg := base
	cfg.Enabled = s.Preload.Enabled
	cfg.MaxCandidates = s.Preload.MaxLinks
	cfg.CacheSizeLimitBytes = int64(s.Preload.CacheSizeMB) * 1024 * 1024
	cfg.StartDelay = time.Duration(s.Preload.StartDelaySeconds * float64(time.Second))
	cfg.ShowIndicators = s.Preload.ShowIndicators
	return cfg
}

type setter func(s *Settings, value string) error

var setters = map[string]setter{
	"modifier_key":                setModifierKey,
	"mac_support":                 boolSetter(func(s *Settings) *bool { return &s.MacSupport }),
	"theme_color":                 setThemeColor,
	"dark_mode":                   boolSetter(func(s *Settings) *bool { return &s.DarkMode }),
	"window_size":                 intSetter(func(s *Settings) *int { return &s.WindowSize }),
	"auto_close_timer":            intSetter(func(s *Settings) *int { return &s.AutoCloseTimer }),
	"animations":                  boolSetter(func(s *Settings) *bool { return &s.Animations }),
	"sound_effects":               boolSetter(func(s *Settings) *bool { return &s.SoundEffects }),
	"background_opacity":          intSetter(func(s *Settings) *int { return &s.BackgroundOpacity }),
	"long_click":                  boolSetter(func(s *Settings) *bool { return &s.LongClick }),
	"long_click_duration_ms":      intSetter(func(s *Settings) *int { return &s.LongClickDuration }),
	"preload.enabled":             boolSetter(func(s *Settings) *bool { return &s.Preload.Enabled }),
	"preload.max_links":           intSetter(func(s *Settings) *int { return &s.Preload.MaxLinks }),
	"preload.cache_size_mb":       intSetter(func(s *Settings) *int { return &s.Preload.CacheSizeMB }),
	"preload.start_delay_seconds": setStartDelay,
	"preload.show_indicators":     boolSetter(func(s *Settings) *bool { return &s.Preload.ShowIndicators }),
}

// Set assigns one setting from its string form, using the TOML key name
// (nested keys are dotted, e.g. preload.max_links). Values are clamped.
func (s *Settings) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := set(s, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.Validate()
	return nil
}

// Keys returns every key accepted by Set, sorted
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func setModifierKey(s *Settings, v string) error {
	v = strings.ToLower(v)
	if !modifierKeys[v] {
		return fmt.Errorf("modifier_key must be one of ctrl, alt, shift, meta")
	}
	s.ModifierKey = v
	return nil
}

func setThemeColor(s *Settings, v string) error {
	if !hexColor.MatchString(v) {
		return fmt.Errorf("theme_color must look like #rrggbb")
	}
	s.ThemeColor = v
	return nil
}

func setStartDelay(s *Settings, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parse number: %w", err)
	}
	s.Preload.StartDelaySeconds = f
	return nil
}

func boolSetter(field func(*Settings) *bool) setter {
	return func(s *Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse bool: %w", err)
		}
		*field(s) = b
		return nil
	}
}

func intSetter(field func(*Settings) *int) setter {
	return func(s *Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse integer: %w", err)
		}
		*field(s) = n
		return nil
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
