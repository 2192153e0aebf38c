package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	cfg, err := LoadArgs([]string{"--dry-run", "--timezone", "UTC"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Interval != 900*time.Second {
		t.Errorf("Expected interval 900s, got %v", cfg.Interval)
	}
	if cfg.MaxPostsPerCycle != 1 {
		t.Errorf("Expected max posts 1, got %d", cfg.MaxPostsPerCycle)
	}
	if cfg.ActualityWindow != 48*time.Hour {
		t.Errorf("Expected actuality window 48h, got %v", cfg.ActualityWindow)
	}
	if cfg.ActiveFromHour != 7 || cfg.ActiveToHour != 23 {
		t.Errorf("Expected active hours 7..23, got %d..%d", cfg.ActiveFromHour, cfg.ActiveToHour)
	}
	if cfg.ExcerptThreshold != 100 {
		t.Errorf("Expected excerpt threshold 100, got %d", cfg.ExcerptThreshold)
	}
	if cfg.CaptionLimit != 1024 || cfg.CaptionCut != 1010 {
		t.Errorf("Expected caption limit/cut 1024/1010, got %d/%d", cfg.CaptionLimit, cfg.CaptionCut)
	}
	if cfg.DedupBackend != "file" {
		t.Errorf("Expected dedup backend 'file', got '%s'", cfg.DedupBackend)
	}
	if cfg.SendInterval != 3*time.Second {
		t.Errorf("Expected send interval 3s, got %v", cfg.SendInterval)
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
}

func TestLoadArgsEnvironment(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("MAX_POSTS_PER_CYCLE", "3")
	t.Setenv("DEDUP_BACKEND", "sqlite")

	cfg, err := LoadArgs([]string{"--timezone", "UTC"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.BotToken != "123:abc" {
		t.Errorf("Expected bot token from env, got '%s'", cfg.BotToken)
	}
	if cfg.MaxPostsPerCycle != 3 {
		t.Errorf("Expected max posts 3, got %d", cfg.MaxPostsPerCycle)
	}
	if cfg.DedupBackend != "sqlite" {
		t.Errorf("Expected dedup backend 'sqlite', got '%s'", cfg.DedupBackend)
	}
}

func TestLoadArgsRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	if _, err := LoadArgs([]string{"--timezone", "UTC"}); err == nil {
		t.Error("Expected error when bot token is missing and dry-run is off")
	}
}

func TestLoadArgsRejectsUnknownBackend(t *testing.T) {
	if _, err := LoadArgs([]string{"--dry-run", "--dedup-backend", "redis"}); err == nil {
		t.Error("Expected error for unsupported dedup backend")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Cfg {
		return &Cfg{
			BotToken:         "token",
			Channel:          "@channel",
			Interval:         time.Minute,
			MaxPostsPerCycle: 1,
			ActualityWindow:  time.Hour,
			ActiveFromHour:   7,
			ActiveToHour:     23,
			FetchWorkers:     1,
			ExcerptThreshold: 100,
			CaptionLimit:     1024,
			CaptionCut:       1010,
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Cfg)
	}{
		{"zero max posts", func(c *Cfg) { c.MaxPostsPerCycle = 0 }},
		{"hour out of range", func(c *Cfg) { c.ActiveToHour = 24 }},
		{"cut above limit", func(c *Cfg) { c.CaptionCut = 2000 }},
		{"empty channel", func(c *Cfg) { c.Channel = "" }},
		{"zero window", func(c *Cfg) { c.ActualityWindow = 0 }},
		{"zero workers", func(c *Cfg) { c.FetchWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestPostsPerHour(t *testing.T) {
	c := &Cfg{Interval: 15 * time.Minute, MaxPostsPerCycle: 1}
	if got := c.PostsPerHour(); got != 4 {
		t.Errorf("Expected 4 posts per hour, got %v", got)
	}
}
