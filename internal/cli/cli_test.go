package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/glimpse/internal/model"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	setDefaults()
	viper.SetEnvPrefix("GLIMPSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	want := model.DefaultConfig()
	if cfg.HTTP.Timeout != want.HTTP.Timeout || cfg.Preload.CacheTTL != want.Preload.CacheTTL {
		t.Errorf("durations not preserved: %+v", cfg)
	}
	if cfg.Preload.Weights != want.Preload.Weights {
		t.Errorf("weights not preserved: %+v", cfg.Preload.Weights)
	}
	if cfg.Server.Addr != want.Server.Addr {
		t.Errorf("expected %s, got %s", want.Server.Addr, cfg.Server.Addr)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GLIMPSE_PRELOAD_MAX_CANDIDATES", "7")
	t.Setenv("GLIMPSE_HTTP_TIMEOUT", "5s")
	t.Setenv("GLIMPSE_ROBOTS_RESPECT", "false")
	resetViper(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Preload.MaxCandidates != 7 {
		t.Errorf("expected 7 candidates, got %d", cfg.Preload.MaxCandidates)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.HTTP.Timeout)
	}
	if cfg.Robots.Respect {
		t.Error("expected robots disabled")
	}
}

func TestBindFlags_ChangedFlagWins(t *testing.T) {
	resetViper(t)

	if err := discoverCmd.Flags().Set("max-links", "3"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = discoverCmd.Flags().Set("max-links", "0")
		discoverCmd.Flags().Lookup("max-links").Changed = false
	})

	bindFlags(discoverCmd.Flags(), map[string]string{"max-links": "preload.max_candidates"})
	cfg, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Preload.MaxCandidates != 3 {
		t.Errorf("expected flag value 3, got %d", cfg.Preload.MaxCandidates)
	}
}

func TestReportName(t *testing.T) {
	a := reportName("https://example.com/docs/intro?x=1")
	b := reportName("https://example.com/docs/intro?x=2")

	if !strings.HasPrefix(a, "example.com_docs_intro-") || !strings.HasSuffix(a, ".json") {
		t.Errorf("unexpected name %q", a)
	}
	if a == b {
		t.Error("expected query strings to give distinct names")
	}
	if long := reportName("https://example.com/" + strings.Repeat("a", 300)); len(long) > 100 {
		t.Errorf("expected name to be truncated, got %d chars", len(long))
	}
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	printCandidates(&buf, []model.LinkCandidate{
		{URL: "https://example.com/a", Priority: 20, Rendered: true, InViewport: true, SameOrigin: true, AboveFold: true},
		{URL: "https://other.org/b", Priority: 0},
	})

	out := buf.String()
	if !strings.Contains(out, "1. [20] https://example.com/a  (rendered viewport same-origin above-fold)") {
		t.Errorf("unexpected first line:\n%s", out)
	}
	if !strings.Contains(out, "2. [ 0] https://other.org/b\n") {
		t.Errorf("unexpected second line:\n%s", out)
	}

	buf.Reset()
	printCandidates(&buf, nil)
	if !strings.Contains(buf.String(), "No preloadable links") {
		t.Errorf("expected empty message, got %q", buf.String())
	}
}
