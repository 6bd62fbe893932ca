package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies the documented defaults.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default review range is 50..500", func(t *testing.T) {
		t.Parallel()
		if cfg.ReviewRange.Min != 50 || cfg.ReviewRange.Max != 500 {
			t.Errorf("expected 50..500, got %d..%d", cfg.ReviewRange.Min, cfg.ReviewRange.Max)
		}
	})

	t.Run("default debug url", func(t *testing.T) {
		t.Parallel()
		if cfg.Chrome.DebugURL != "http://127.0.0.1:9222" {
			t.Errorf("unexpected debug url %q", cfg.Chrome.DebugURL)
		}
	})

	t.Run("default parent depth is 5", func(t *testing.T) {
		t.Parallel()
		if cfg.ListScan.ParentDepth != 5 {
			t.Errorf("expected 5, got %d", cfg.ListScan.ParentDepth)
		}
	})

	t.Run("auto solver enabled with 3 attempts", func(t *testing.T) {
		t.Parallel()
		if !cfg.Captcha.AutoSolver.Enabled || cfg.Captcha.AutoSolver.MaxAttempts != 3 {
			t.Errorf("unexpected auto solver %+v", cfg.Captcha.AutoSolver)
		}
	})

	t.Run("default config validates", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid default config, got %v", err)
		}
	})

	t.Run("dwell durations", func(t *testing.T) {
		t.Parallel()
		lo, hi := cfg.Dwell.Page()
		if lo != 2*time.Second || hi != 4*time.Second {
			t.Errorf("unexpected page dwell %v..%v", lo, hi)
		}
	})
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{name: "empty debug url", mutate: func(c *Config) { c.Chrome.DebugURL = "" }, wantErr: ErrNoDebugURL},
		{name: "inverted review range", mutate: func(c *Config) { c.ReviewRange.Min = 600 }, wantErr: ErrInvalidReviewRange},
		{name: "negative review min", mutate: func(c *Config) { c.ReviewRange.Min = -1 }, wantErr: ErrInvalidReviewRange},
		{name: "zero max tabs", mutate: func(c *Config) { c.Chrome.MaxTabsTotal = 0 }, wantErr: ErrInvalidTabLimit},
		{name: "zero tabs per page", mutate: func(c *Config) { c.Chrome.MaxTabsPerPage = 0 }, wantErr: ErrInvalidTabLimit},
		{name: "one enumerated tab", mutate: func(c *Config) { c.Chrome.MaxEnumeratedTabs = 1 }, wantErr: ErrInvalidTabLimit},
		{name: "negative enumerated tabs", mutate: func(c *Config) { c.Chrome.MaxEnumeratedTabs = -1 }, wantErr: ErrInvalidTabLimit},
		{name: "uncapped enumeration", mutate: func(c *Config) { c.Chrome.MaxEnumeratedTabs = 0 }},
		{name: "zero scroll passes", mutate: func(c *Config) { c.ListScan.ScrollPassesMin = 0 }, wantErr: ErrInvalidScrollPasses},
		{name: "inverted scroll passes", mutate: func(c *Config) { c.ListScan.ScrollPassesMin = 9 }, wantErr: ErrInvalidScrollPasses},
		{name: "zero max pages", mutate: func(c *Config) { c.ListScan.MaxPagesPerKeyword = 0 }, wantErr: ErrInvalidMaxPages},
		{name: "negative parent depth", mutate: func(c *Config) { c.ListScan.ParentDepth = -1 }, wantErr: ErrInvalidParentDepth},
		{name: "inverted view dwell", mutate: func(c *Config) { c.Dwell.ViewMin = 5000 }, wantErr: ErrInvalidDwell},
		{name: "long probability above one", mutate: func(c *Config) { c.Dwell.LongProbability = 1.5 }, wantErr: ErrInvalidDwell},
		{name: "empty sorting preset", mutate: func(c *Config) { c.Preset.Sorting = "" }, wantErr: ErrInvalidPreset},
		{name: "zero preset retry", mutate: func(c *Config) { c.Preset.MaxRetry = 0 }, wantErr: ErrInvalidPreset},
		{name: "confidence above one", mutate: func(c *Config) { c.Captcha.MinConfidence = 1.1 }, wantErr: ErrInvalidConfidence},
		{name: "zero solve attempts", mutate: func(c *Config) { c.Captcha.AutoSolver.MaxAttempts = 0 }, wantErr: ErrInvalidCaptchaAttempts},
		{name: "zero display width", mutate: func(c *Config) { c.Display.Width = 0 }, wantErr: ErrInvalidDisplay},
		{name: "unknown vision server", mutate: func(c *Config) {
			c.Tools.Servers = map[string]ToolServer{"ocr": {Command: "ocr-server"}}
		}, wantErr: ErrUnknownToolServer},
		{name: "vision server not needed without auto solver", mutate: func(c *Config) {
			c.Tools.Servers = map[string]ToolServer{"ocr": {Command: "ocr-server"}}
			c.Captcha.AutoSolver.Enabled = false
		}},
		{name: "unknown ocr server", mutate: func(c *Config) {
			c.Tools.Servers = map[string]ToolServer{"gemini": {Command: "gemini-mcp"}}
		}, wantErr: ErrUnknownToolServer},
		{name: "broken signal pattern", mutate: func(c *Config) { c.InternalSignals = []string{"("} }, wantErr: ErrInvalidPattern},
		{name: "review pattern without group", mutate: func(c *Config) { c.ListScan.ReviewPattern = `리뷰\s*[0-9,]+` }, wantErr: ErrInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("solve attempts ignored when auto solver disabled", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Captcha.AutoSolver.Enabled = false
		cfg.Captcha.AutoSolver.MaxAttempts = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})
}

// TestLoadConfigFile tests YAML loading over defaults.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("overrides only the given fields", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, DefaultConfigFile)
		content := `
review_range:
  min: 10
  max: 20
blocked_domains:
  - ad.example.com
chrome:
  max_tabs_total: 7
tools:
  servers:
    ocr:
      command: mcp-ocr
      args: ["--stdio"]
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}

		if cfg.ReviewRange.Min != 10 || cfg.ReviewRange.Max != 20 {
			t.Errorf("unexpected review range %+v", cfg.ReviewRange)
		}
		if cfg.Chrome.MaxTabsTotal != 7 {
			t.Errorf("expected max_tabs_total 7, got %d", cfg.Chrome.MaxTabsTotal)
		}
		if cfg.Chrome.MaxTabsPerPage != DefaultMaxTabsPerPage {
			t.Errorf("expected default max_tabs_per_page, got %d", cfg.Chrome.MaxTabsPerPage)
		}
		if len(cfg.BlockedDomains) != 1 || cfg.BlockedDomains[0] != "ad.example.com" {
			t.Errorf("unexpected blocked domains %v", cfg.BlockedDomains)
		}
		if cfg.Tools.Servers["ocr"].Command != "mcp-ocr" {
			t.Errorf("unexpected tool servers %+v", cfg.Tools.Servers)
		}
		if cfg.Tools.Vision.Tool != DefaultVisionTool {
			t.Errorf("expected default vision tool, got %q", cfg.Tools.Vision.Tool)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("ConfigFilePath = %q", cfg.ConfigFilePath)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("review_range: [1, 2"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("merges mcp file relative to config", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		mcp := `{"mcpServers": {"gemini": {"command": "gemini-mcp", "env": {"GEMINI_API_KEY": "${GEMINI_API_KEY}"}}, "ocr": {"command": "ignored"}}}`
		if err := os.WriteFile(filepath.Join(dir, ".mcp.json"), []byte(mcp), 0600); err != nil {
			t.Fatal(err)
		}
		content := "tools:\n  mcp_file: .mcp.json\n  servers:\n    ocr:\n      command: mcp-ocr\n"
		path := filepath.Join(dir, "c.yaml")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("LoadConfigFile() error = %v", err)
		}
		if cfg.Tools.Servers["gemini"].Command != "gemini-mcp" {
			t.Errorf("gemini server not merged: %+v", cfg.Tools.Servers)
		}
		if cfg.Tools.Servers["ocr"].Command != "mcp-ocr" {
			t.Errorf("yaml server must win, got %+v", cfg.Tools.Servers["ocr"])
		}
		if got := strings.Join(cfg.Tools.ServerNames(), ","); got != "gemini,ocr" {
			t.Errorf("ServerNames() = %q", got)
		}
	})
}

// TestToolServerEnviron tests ${VAR} expansion.
func TestToolServerEnviron(t *testing.T) {
	t.Setenv("DESKMASTER_TEST_KEY", "k-123")

	s := ToolServer{Command: "x", Env: map[string]string{"API_KEY": "${DESKMASTER_TEST_KEY}", "MODE": "fast"}}
	env := s.Environ()

	found := map[string]bool{}
	for _, kv := range env {
		switch kv {
		case "API_KEY=k-123", "MODE=fast":
			found[kv] = true
		}
	}
	if len(found) != 2 {
		t.Errorf("expected expanded variables in environment, found %v", found)
	}
}

// TestLoadDotEnv tests .env loading.
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DESKMASTER_DOTENV_TEST=hello\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DESKMASTER_DOTENV_TEST", "")
	if err := os.Unsetenv("DESKMASTER_DOTENV_TEST"); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("DESKMASTER_DOTENV_TEST"); got != "hello" {
		t.Errorf("expected hello, got %q", got)
	}
}

// TestFindConfigFile tests explicit path handling.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "c.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("explicit missing path", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "none.yaml")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

// TestDirs tests directory fallbacks.
func TestDirs(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if !strings.Contains(cfg.LogDir(), AppName) {
		t.Errorf("LogDir() = %q, want XDG path containing %q", cfg.LogDir(), AppName)
	}
	if !strings.Contains(cfg.ArtifactsDir(), AppName) {
		t.Errorf("ArtifactsDir() = %q", cfg.ArtifactsDir())
	}

	cfg.Logging.Dir = "/tmp/logs"
	cfg.Logging.ArtifactsDir = "/tmp/artifacts"
	if cfg.LogDir() != "/tmp/logs" || cfg.ArtifactsDir() != "/tmp/artifacts" {
		t.Errorf("explicit dirs not used: %q %q", cfg.LogDir(), cfg.ArtifactsDir())
	}
}
