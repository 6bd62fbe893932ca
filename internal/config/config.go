package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/deskmaster/internal/model"
)

// AppName is the application name used for XDG directory paths.
const AppName = "deskmaster"

// Default configuration values.
// They mirror the values the tool was tuned with on a 1920x1080 desktop
// against Naver Shopping result pages.
const (
	// DefaultDebugURL is where Chrome listens when started with
	// --remote-debugging-port=9222.
	DefaultDebugURL = "http://127.0.0.1:9222"

	DefaultReviewMin = 50
	DefaultReviewMax = 500

	DefaultMaxTabsTotal   = 20
	DefaultMaxTabsPerPage = 10

	// DefaultMaxEnumeratedTabs limits how many tabs ProcessAll inspects.
	// Zero inspects every open tab.
	DefaultMaxEnumeratedTabs = 0

	DefaultScrollPassesMin    = 3
	DefaultScrollPassesMax    = 5
	DefaultMaxPagesPerKeyword = 5
	DefaultParentDepth        = 5

	// DefaultReviewPattern matches "리뷰 1,234" style review labels.
	DefaultReviewPattern = `리뷰\s*([0-9,]+)`

	DefaultPresetMaxRetry = 3

	DefaultCaptchaMinConfidence = 0.7
	DefaultCaptchaMaxAttempts   = 3

	DefaultOCRLanguage = "kor+eng"

	DefaultDisplayWidth  = 1920
	DefaultDisplayHeight = 1080
	DefaultDisplayScale  = 100

	// DefaultSignalGrace is the wait before re-checking a tab whose
	// internal signals did not render yet.
	DefaultSignalGrace = 2 * time.Second
)

// Config holds every setting of a DeskMaster run.
// File-backed sections are tagged for YAML; runtime fields set from CLI
// flags are excluded from the file.
type Config struct {
	Chrome          ChromeConfig      `yaml:"chrome"`
	ReviewRange     model.ReviewRange `yaml:"review_range"`
	InternalSignals []string          `yaml:"internal_signals"`
	AllowedDomains  []string          `yaml:"allowed_domains"`
	BlockedDomains  []string          `yaml:"blocked_domains"`
	Dwell           DwellConfig       `yaml:"dwell"`
	ListScan        ListScanConfig    `yaml:"list_scan"`
	Preset          PresetConfig      `yaml:"preset"`
	Captcha         CaptchaConfig     `yaml:"captcha"`
	OCR             OCRConfig         `yaml:"ocr"`
	Display         DisplayConfig     `yaml:"display"`
	Logging         LoggingConfig     `yaml:"logging"`
	Tools           ToolsConfig       `yaml:"tools"`
	Metrics         MetricsConfig     `yaml:"metrics"`

	// Keywords are the search keywords given on the command line.
	Keywords []string `yaml:"-"`

	// Verbose enables debug diagnostics on stderr.
	Verbose bool `yaml:"-"`

	// ConfigFilePath is the file the configuration was loaded from, if any.
	ConfigFilePath string `yaml:"-"`

	// DBDir is the directory of the session history database.
	// Empty disables history.
	DBDir string `yaml:"-"`
}

// ChromeConfig describes the browser connection and the tab budget.
type ChromeConfig struct {
	// DebugURL is the DevTools endpoint of the running Chrome.
	DebugURL string `yaml:"debug_url"`

	// MaxTabsTotal is the most tabs (list tab included) allowed open.
	MaxTabsTotal int `yaml:"max_tabs_total"`

	// MaxTabsPerPage caps the candidates opened from a single result page.
	MaxTabsPerPage int `yaml:"max_tabs_per_page"`

	// MaxEnumeratedTabs caps how many tabs one classification pass
	// inspects, list tab included. Zero means no cap.
	MaxEnumeratedTabs int `yaml:"max_enumerated_tabs"`
}

// DwellConfig holds the randomized pauses, in milliseconds.
type DwellConfig struct {
	ViewMin int `yaml:"view_min"`
	ViewMax int `yaml:"view_max"`
	PageMin int `yaml:"page_min"`
	PageMax int `yaml:"page_max"`
	LongMin int `yaml:"long_min"`
	LongMax int `yaml:"long_max"`

	// LongProbability is the chance of using the long pause before a page move.
	LongProbability float64 `yaml:"long_probability"`

	// JitterProbability is the chance of an up/down scroll before a page move.
	JitterProbability float64 `yaml:"jitter_probability"`
}

// View returns the pause range after a scroll.
func (d DwellConfig) View() (time.Duration, time.Duration) {
	return ms(d.ViewMin), ms(d.ViewMax)
}

// Page returns the pause range before processing tabs or moving pages.
func (d DwellConfig) Page() (time.Duration, time.Duration) {
	return ms(d.PageMin), ms(d.PageMax)
}

// Long returns the occasional long pause range.
func (d DwellConfig) Long() (time.Duration, time.Duration) {
	return ms(d.LongMin), ms(d.LongMax)
}

// ListScanConfig controls how result pages are scanned.
type ListScanConfig struct {
	ScrollPassesMin    int    `yaml:"scroll_passes_min"`
	ScrollPassesMax    int    `yaml:"scroll_passes_max"`
	MaxPagesPerKeyword int    `yaml:"max_pages_per_keyword"`
	ParentDepth        int    `yaml:"parent_depth"`
	ReviewPattern      string `yaml:"review_pattern"`
}

// PresetConfig holds the sort and display presets checked before scanning.
type PresetConfig struct {
	Sorting     string `yaml:"sorting"`
	SortControl string `yaml:"sort_control"`

	DisplayCount    string   `yaml:"display_count"`
	DisplayControls []string `yaml:"display_controls"`

	MaxRetry         int  `yaml:"max_retry"`
	SkipDisplayCheck bool `yaml:"skip_display_check"`
}

// CaptchaConfig controls detection and solving of challenges.
type CaptchaConfig struct {
	Keywords       []string         `yaml:"keywords"`
	MinConfidence  float64          `yaml:"min_confidence"`
	AutoSolver     AutoSolverConfig `yaml:"auto_solver"`
	InputPatterns  []string         `yaml:"input_patterns"`
	SubmitPatterns []string         `yaml:"submit_patterns"`
}

// AutoSolverConfig controls the vision-based solver.
type AutoSolverConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"max_attempts"`
	BackoffMin  int  `yaml:"backoff_min"`
	BackoffMax  int  `yaml:"backoff_max"`
}

// Backoff returns the pause range between solve attempts.
func (a AutoSolverConfig) Backoff() (time.Duration, time.Duration) {
	return ms(a.BackoffMin), ms(a.BackoffMax)
}

// OCRConfig configures the OCR fallback.
type OCRConfig struct {
	Language string `yaml:"language"`
}

// DisplayConfig is the display the automation was calibrated for.
type DisplayConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	// Scale is the device scale in percent (100 = 96 DPI, no browser zoom).
	Scale int `yaml:"scale"`

	// SkipCheck disables the environment verification.
	SkipCheck bool `yaml:"skip_check"`
}

// LoggingConfig holds output directories. Empty values use XDG defaults.
type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// NewConfig creates a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Chrome: ChromeConfig{
			DebugURL:          DefaultDebugURL,
			MaxTabsTotal:      DefaultMaxTabsTotal,
			MaxTabsPerPage:    DefaultMaxTabsPerPage,
			MaxEnumeratedTabs: DefaultMaxEnumeratedTabs,
		},
		ReviewRange:     model.ReviewRange{Min: DefaultReviewMin, Max: DefaultReviewMax},
		InternalSignals: []string{"스마트스토어", "톡톡문의", "네이버페이"},
		AllowedDomains:  []string{"smartstore.naver.com", "brand.naver.com"},
		BlockedDomains:  []string{},
		Dwell: DwellConfig{
			ViewMin:           800,
			ViewMax:           1800,
			PageMin:           2000,
			PageMax:           4000,
			LongMin:           8000,
			LongMax:           15000,
			LongProbability:   0.1,
			JitterProbability: 0.3,
		},
		ListScan: ListScanConfig{
			ScrollPassesMin:    DefaultScrollPassesMin,
			ScrollPassesMax:    DefaultScrollPassesMax,
			MaxPagesPerKeyword: DefaultMaxPagesPerKeyword,
			ParentDepth:        DefaultParentDepth,
			ReviewPattern:      DefaultReviewPattern,
		},
		Preset: PresetConfig{
			Sorting:      "리뷰 많은순",
			SortControl:  "정렬",
			DisplayCount: "80개씩 보기",
			DisplayControls: []string{
				`.*개씩.*보기.*`,
				`.*개.*보기.*`,
				`40개씩 보기`,
				`80개씩 보기`,
			},
			MaxRetry: DefaultPresetMaxRetry,
		},
		Captcha: CaptchaConfig{
			Keywords:      []string{"보안문자", "자동입력 방지", "captcha"},
			MinConfidence: DefaultCaptchaMinConfidence,
			AutoSolver: AutoSolverConfig{
				Enabled:     true,
				MaxAttempts: DefaultCaptchaMaxAttempts,
				BackoffMin:  2000,
				BackoffMax:  5000,
			},
			InputPatterns:  []string{"입력", "보안문자", "answer", "captcha"},
			SubmitPatterns: []string{"확인", "제출", "submit", "OK"},
		},
		OCR: OCRConfig{Language: DefaultOCRLanguage},
		Display: DisplayConfig{
			Width:  DefaultDisplayWidth,
			Height: DefaultDisplayHeight,
			Scale:  DefaultDisplayScale,
		},
		Tools: NewToolsConfig(),
	}
}

// XDGDataDir returns the XDG data directory for DeskMaster.
// On Linux: ~/.local/share/deskmaster
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGStateDir returns the XDG state directory, where event logs go.
// On Linux: ~/.local/state/deskmaster
func XDGStateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// XDGConfigDir returns the XDG config directory for DeskMaster.
// On Linux: ~/.config/deskmaster
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// LogDir returns the event log directory.
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(XDGStateDir(), "logs")
}

// ArtifactsDir returns the screenshot directory.
func (c *Config) ArtifactsDir() string {
	if c.Logging.ArtifactsDir != "" {
		return c.Logging.ArtifactsDir
	}
	return filepath.Join(XDGDataDir(), "artifacts")
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Chrome.DebugURL == "" {
		return ErrNoDebugURL
	}
	if c.ReviewRange.Min < 0 || c.ReviewRange.Min > c.ReviewRange.Max {
		return ErrInvalidReviewRange
	}
	if c.Chrome.MaxTabsTotal < 1 || c.Chrome.MaxTabsPerPage < 1 || c.Chrome.MaxEnumeratedTabs < 0 || c.Chrome.MaxEnumeratedTabs == 1 {
		return ErrInvalidTabLimit
	}
	if c.ListScan.ScrollPassesMin < 1 || c.ListScan.ScrollPassesMin > c.ListScan.ScrollPassesMax {
		return ErrInvalidScrollPasses
	}
	if c.ListScan.MaxPagesPerKeyword < 1 {
		return ErrInvalidMaxPages
	}
	if c.ListScan.ParentDepth < 0 {
		return ErrInvalidParentDepth
	}
	if err := c.Dwell.validate(); err != nil {
		return err
	}
	if c.Preset.Sorting == "" || c.Preset.MaxRetry < 1 {
		return ErrInvalidPreset
	}
	if c.Captcha.MinConfidence < 0 || c.Captcha.MinConfidence > 1 {
		return ErrInvalidConfidence
	}
	if c.Captcha.AutoSolver.Enabled && c.Captcha.AutoSolver.MaxAttempts < 1 {
		return ErrInvalidCaptchaAttempts
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 || c.Display.Scale <= 0 {
		return ErrInvalidDisplay
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	return c.validatePatterns()
}

// validateTools checks that tool references name configured servers.
// With no servers at all the tools are simply disabled.
func (c *Config) validateTools() error {
	if len(c.Tools.Servers) == 0 {
		return nil
	}
	if _, ok := c.Tools.Servers[c.Tools.OCR.Server]; !ok {
		return fmt.Errorf("%w: tools.ocr names %q", ErrUnknownToolServer, c.Tools.OCR.Server)
	}
	if !c.Captcha.AutoSolver.Enabled {
		return nil
	}
	if _, ok := c.Tools.Servers[c.Tools.Vision.Server]; !ok {
		return fmt.Errorf("%w: tools.vision names %q", ErrUnknownToolServer, c.Tools.Vision.Server)
	}
	return nil
}

func (d DwellConfig) validate() error {
	pairs := [][2]int{
		{d.ViewMin, d.ViewMax},
		{d.PageMin, d.PageMax},
		{d.LongMin, d.LongMax},
	}
	for _, p := range pairs {
		if p[0] < 0 || p[0] > p[1] {
			return ErrInvalidDwell
		}
	}
	if d.LongProbability < 0 || d.LongProbability > 1 || d.JitterProbability < 0 || d.JitterProbability > 1 {
		return ErrInvalidDwell
	}
	return nil
}

// validatePatterns compiles every configured pattern once so a typo fails
// before the browser is touched.
func (c *Config) validatePatterns() error {
	groups := map[string][]string{
		"list_scan.review_pattern": {c.ListScan.ReviewPattern},
		"internal_signals":         c.InternalSignals,
		"preset.sorting":           {c.Preset.Sorting, c.Preset.SortControl, c.Preset.DisplayCount},
		"preset.display_controls":  c.Preset.DisplayControls,
		"captcha.keywords":         c.Captcha.Keywords,
		"captcha.input_patterns":   c.Captcha.InputPatterns,
		"captcha.submit_patterns":  c.Captcha.SubmitPatterns,
	}
	for field, patterns := range groups {
		for _, p := range patterns {
			if p == "" {
				continue
			}
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("%w: %s: %q: %v", ErrInvalidPattern, field, p, err)
			}
		}
	}
	if re := regexp.MustCompile(c.ListScan.ReviewPattern); re.NumSubexp() < 1 {
		return fmt.Errorf("%w: list_scan.review_pattern needs a capture group", ErrInvalidPattern)
	}
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
