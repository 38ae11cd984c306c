package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/glimpse/internal/model"
)

func TestDefault(t *testing.T) {
	st := Default()
	if st.ModifierKey != "ctrl" {
		t.Errorf("expected ctrl modifier, got %q", st.ModifierKey)
	}
	if st.WindowSize != 80 || st.BackgroundOpacity != 60 {
		t.Errorf("unexpected window defaults: %+v", st)
	}
	if !st.Preload.Enabled || st.Preload.MaxLinks != 10 || st.Preload.CacheSizeMB != 50 {
		t.Errorf("unexpected preload defaults: %+v", st.Preload)
	}

	before := st
	st.Validate()
	if st != before {
		t.Errorf("defaults should already be valid, got %+v", st)
	}
}

func TestValidate_Clamps(t *testing.T) {
	st := Default()
	st.ModifierKey = "Hyper"
	st.ThemeColor = "blue"
	st.WindowSize = 5
	st.AutoCloseTimer = 600
	st.BackgroundOpacity = -3
	st.LongClickDuration = 50
	st.Preload.MaxLinks = 0
	st.Preload.CacheSizeMB = 4096
	st.Preload.StartDelaySeconds = 90

	st.Validate()

	if st.ModifierKey != "ctrl" {
		t.Errorf("expected invalid modifier replaced, got %q", st.ModifierKey)
	}
	if st.ThemeColor != "#667eea" {
		t.Errorf("expected invalid color replaced, got %q", st.ThemeColor)
	}
	if st.WindowSize != 30 || st.AutoCloseTimer != 60 || st.BackgroundOpacity != 0 {
		t.Errorf("unexpected clamped window values: %+v", st)
	}
	if st.LongClickDuration != 200 {
		t.Errorf("expected long click duration 200, got %d", st.LongClickDuration)
	}
	if st.Preload.MaxLinks != 1 || st.Preload.CacheSizeMB != 500 || st.Preload.StartDelaySeconds != 30 {
		t.Errorf("unexpected clamped preload values: %+v", st.Preload)
	}
}

func TestSet(t *testing.T) {
	st := Default()

	tests := []struct {
		key, value string
		check      func(Settings) bool
	}{
		{"dark_mode", "true", func(s Settings) bool { return s.DarkMode }},
		{"modifier_key", "ALT", func(s Settings) bool { return s.ModifierKey == "alt" }},
		{"theme_color", "#112233", func(s Settings) bool { return s.ThemeColor == "#112233" }},
		{"window_size", "200", func(s Settings) bool { return s.WindowSize == 100 }},
		{"preload.max_links", "25", func(s Settings) bool { return s.Preload.MaxLinks == 25 }},
		{"preload.start_delay_seconds", "0.5", func(s Settings) bool { return s.Preload.StartDelaySeconds == 0.5 }},
		{"preload.enabled", "false", func(s Settings) bool { return !s.Preload.Enabled }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := st.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) failed: %v", tt.key, tt.value, err)
			}
			if !tt.check(st) {
				t.Errorf("Set(%q, %q) not applied: %+v", tt.key, tt.value, st)
			}
		})
	}
}

func TestSet_Errors(t *testing.T) {
	st := Default()

	if err := st.Set("no_such_key", "1"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if err := st.Set("animations", "maybe"); err == nil {
		t.Error("expected error for bad bool")
	}
	if err := st.Set("preload.cache_size_mb", "lots"); err == nil {
		t.Error("expected error for bad integer")
	}
	if err := st.Set("theme_color", "red"); err == nil {
		t.Error("expected error for bad color")
	}
	if st != Default() {
		t.Errorf("failed sets should leave settings unchanged, got %+v", st)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(setters) {
		t.Fatalf("expected %d keys, got %d", len(setters), len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Fatalf("keys not sorted: %v", keys)
		}
	}
}

func TestPreloadConfig(t *testing.T) {
	st := Default()
	st.Preload.CacheSizeMB = 50
	st.Preload.StartDelaySeconds = 1.5
	st.Preload.MaxLinks = 7

	base := model.DefaultPreloadConfig()
	base.MaxConcurrentFetches = 3

	cfg := st.PreloadConfig(base)
	if cfg.CacheSizeLimitBytes != 52428800 {
		t.Errorf("expected 52428800 bytes, got %d", cfg.CacheSizeLimitBytes)
	}
	if cfg.StartDelay != 1500*time.Millisecond {
		t.Errorf("expected 1.5s delay, got %v", cfg.StartDelay)
	}
	if cfg.MaxCandidates != 7 {
		t.Errorf("expected 7 candidates, got %d", cfg.MaxCandidates)
	}
	if cfg.MaxConcurrentFetches != 3 {
		t.Errorf("expected base concurrency kept, got %d", cfg.MaxConcurrentFetches)
	}
}

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.toml")
	store := NewStore(path)

	st := Default()
	st.DarkMode = true
	st.ThemeColor = "#abcdef"
	st.Preload.MaxLinks = 99

	saved, err := store.Save(st)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if saved.Preload.MaxLinks != 50 {
		t.Errorf("expected max links clamped on save, got %d", saved.Preload.MaxLinks)
	}

	for _, p := range []string{path, path + ".bak"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s written: %v", p, err)
		}
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != saved {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, saved)
	}
}

func TestStore_MissingFilesGiveDefaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.toml"))

	st, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error for missing files, got %v", err)
	}
	if st != Default() {
		t.Errorf("expected defaults, got %+v", st)
	}
}

func TestStore_FallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	store := NewStore(path)

	st := Default()
	st.SoundEffects = true
	if _, err := store.Save(st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("this is = = not toml"), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("expected backup to be used, got %v", err)
	}
	if !loaded.SoundEffects {
		t.Error("expected settings from backup")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	loaded, err = store.Load()
	if err != nil || !loaded.SoundEffects {
		t.Errorf("expected backup used when primary is missing, got %+v (%v)", loaded, err)
	}
}

func TestStore_CorruptWithoutBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("[[[broken"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := NewStore(path).Load()
	if err == nil {
		t.Error("expected parse error")
	}
	if st != Default() {
		t.Errorf("expected defaults alongside the error, got %+v", st)
	}
}

func TestStore_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("dark_mode = true\n[preload]\nmax_links = 4\n"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !st.DarkMode || st.Preload.MaxLinks != 4 {
		t.Errorf("expected file values applied, got %+v", st)
	}
	if st.WindowSize != 80 || st.Preload.CacheSizeMB != 50 {
		t.Errorf("expected unspecified values to keep defaults, got %+v", st)
	}
}

func TestStore_Reset(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.toml"))

	st := Default()
	st.DarkMode = true
	if _, err := store.Save(st); err != nil {
		t.Fatal(err)
	}

	reset, err := store.Reset()
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	loaded, _ := store.Load()
	if reset != Default() || loaded != Default() {
		t.Errorf("expected defaults after reset, got %+v / %+v", reset, loaded)
	}
}
