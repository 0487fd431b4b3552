package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "RETRY_ATTEMPTS", "STAGE_TIMEOUT", "FEED_URLS", "CONFIDENCE_THRESHOLD"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8080" || cfg.RetryAttempts != 3 || cfg.StageTimeout != 20*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ConfidenceThreshold != 40 || len(cfg.FeedURLs) != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STAGE_TIMEOUT", "750ms")
	t.Setenv("RETRY_BASE_DELAY", "2")
	t.Setenv("FEED_URLS", "https://a.example/rss, ,https://b.example/atom")
	t.Setenv("ENHANCEMENT_ENABLED", "notabool")

	cfg := Load()
	if cfg.StageTimeout != 750*time.Millisecond {
		t.Fatalf("stage timeout = %v", cfg.StageTimeout)
	}
	if cfg.RetryBaseDelay != 2*time.Second {
		t.Fatalf("bare seconds should parse, got %v", cfg.RetryBaseDelay)
	}
	if len(cfg.FeedURLs) != 2 || cfg.FeedURLs[1] != "https://b.example/atom" {
		t.Fatalf("feeds = %v", cfg.FeedURLs)
	}
	if cfg.EnhancementEnabled {
		t.Fatalf("invalid bool should fall back to default")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Load()
	cfg.Port = "99999"
	cfg.RetryAttempts = 0
	cfg.ConfidenceThreshold = 120
	cfg.FeedURLs = []string{"ftp://nope"}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"PORT", "RETRY_ATTEMPTS", "CONFIDENCE_THRESHOLD", "FEED_URLS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestSummaryMasksSecrets(t *testing.T) {
	cfg := Load()
	cfg.OpenAIAPIKey = "sk-1234567890"
	s := cfg.GetConfigSummary()
	if s["openai_api_key"] != "sk-123*******" {
		t.Fatalf("unexpected mask %v", s["openai_api_key"])
	}
}

func TestWatcherAppliesDotEnvChanges(t *testing.T) {
	t.Setenv("MAX_RECOMMENDATIONS", "20")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MAX_RECOMMENDATIONS=20\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := NewFileWatcher(time.Hour, path)
	defer w.Close()
	ch := w.Subscribe()

	if err := os.WriteFile(path, []byte("# tuned\nMAX_RECOMMENDATIONS=7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	w.checkOnce()

	select {
	case chg := <-ch:
		if chg.Err != nil {
			t.Fatalf("unexpected error: %v", chg.Err)
		}
		if chg.New.MaxRecommendations != 7 || chg.Old.MaxRecommendations != 20 {
			t.Fatalf("unexpected change: old=%d new=%d", chg.Old.MaxRecommendations, chg.New.MaxRecommendations)
		}
		if len(chg.Fields) != 1 || chg.Fields[0] != "MaxRecommendations" {
			t.Fatalf("fields = %v", chg.Fields)
		}
	default:
		t.Fatalf("expected a change notification")
	}
	if w.Current().MaxRecommendations != 7 {
		t.Fatalf("current config not updated")
	}
}

func TestWatcherCloseClosesSubscribers(t *testing.T) {
	w := NewFileWatcher(10*time.Millisecond, "")
	ch := w.Subscribe()
	w.Start()
	w.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	w.Close()
}
