// Package config loads and validates the TOML configuration shared by the
// watchers and the summarizer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kfrem/recapify/internal/util"
)

// Config represents the main configuration.
type Config struct {
	Filesystem FilesystemConfig `toml:"filesystem"`
	Tmux       TmuxConfig       `toml:"tmux"`
	LLM        LLMConfig        `toml:"llm"`
	Summarizer SummarizerConfig `toml:"summarizer"`
}

// FilesystemConfig controls the file change watcher.
type FilesystemConfig struct {
	Enable              bool     `toml:"enable"`
	Dirs                []string `toml:"dirs"`                 // directories to watch, ~ expanded
	OutputFile          string   `toml:"output_file"`          // file change log path
	IncludeFiletypes    []string `toml:"include_filetypes"`    // e.g. [".py", ".go"]; empty means all
	ExcludeFiletypes    []string `toml:"exclude_filetypes"`    // e.g. [".pyc", ".o"]
	MajorChangesOnly    bool     `toml:"major_changes_only"`   // drop typo-level edits
	MinLinesChanged     int      `toml:"min_lines_changed"`    // major-change line threshold
	SimilarityThreshold float64  `toml:"similarity_threshold"` // [0.0-1.0]; below this a changed line is major
	PollIntervalSec     int      `toml:"poll_interval_sec"`
}

// TmuxConfig controls the terminal session watcher.
type TmuxConfig struct {
	Enable            bool     `toml:"enable"`
	OutputFile        string   `toml:"output_file"`         // command log path
	Panes             []string `toml:"panes"`               // explicit pane ids; empty monitors all panes
	CaptureFullOutput bool     `toml:"capture_full_output"` // record whole buffer instead of last command output
	ScrollbackLines   int      `toml:"scrollback_lines"`
	PollIntervalSec   int      `toml:"poll_interval_sec"`
}

// LLMConfig selects the completion backend.
type LLMConfig struct {
	Provider string `toml:"provider"` // openai, ollama, github_copilot, or custom
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"` // overrides the provider default endpoint
}

// SummarizerConfig controls the daily summarization run.
type SummarizerConfig struct {
	Enable          bool   `toml:"enable"`
	OutputDir       string `toml:"output_dir"`  // where dated summaries are written
	TokenLimit      int    `toml:"token_limit"` // per-chunk budget for the reduction
	At              string `toml:"at"`          // daily run time, "HH:MM" 24h
	TickIntervalSec int    `toml:"tick_interval_sec"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Filesystem: FilesystemConfig{
			Enable:              true,
			OutputFile:          "~/.local/state/recapify/changes.json",
			MajorChangesOnly:    false,
			MinLinesChanged:     3,
			SimilarityThreshold: 0.7,
			PollIntervalSec:     1,
		},
		Tmux: TmuxConfig{
			Enable:          true,
			OutputFile:      "~/.local/state/recapify/commands.json",
			ScrollbackLines: 1000,
			PollIntervalSec: 1,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.2",
		},
		Summarizer: SummarizerConfig{
			Enable:          true,
			OutputDir:       "~/.local/state/recapify",
			TokenLimit:      32000,
			At:              "19:00",
			TickIntervalSec: 60,
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	if env := os.Getenv("RECAPIFY_CONFIG"); env != "" {
		return util.ExpandUser(env)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "recapify", "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "recapify", "config.toml")
}

// Load reads the config at path, layering TOML over defaults and environment
// overrides over TOML. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if key := os.Getenv("RECAPIFY_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if url := os.Getenv("RECAPIFY_BASE_URL"); url != "" {
		cfg.LLM.BaseURL = url
	}
	if model := os.Getenv("RECAPIFY_MODEL"); model != "" {
		cfg.LLM.Model = model
	}

	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandPaths() {
	for i, d := range c.Filesystem.Dirs {
		c.Filesystem.Dirs[i] = util.ExpandUser(d)
	}
	c.Filesystem.OutputFile = util.ExpandUser(c.Filesystem.OutputFile)
	c.Tmux.OutputFile = util.ExpandUser(c.Tmux.OutputFile)
	c.Summarizer.OutputDir = util.ExpandUser(c.Summarizer.OutputDir)
}

// Validate checks cross-field constraints that TOML decoding cannot.
func (c *Config) Validate() error {
	if err := ValidateFilesystemConfig(&c.Filesystem); err != nil {
		return err
	}
	if err := ValidateTmuxConfig(&c.Tmux); err != nil {
		return err
	}
	if err := ValidateLLMConfig(&c.LLM); err != nil {
		return err
	}
	return ValidateSummarizerConfig(&c.Summarizer)
}

// ValidateFilesystemConfig validates the filesystem watcher section.
func ValidateFilesystemConfig(cfg *FilesystemConfig) error {
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return fmt.Errorf("filesystem.similarity_threshold %v out of range [0.0, 1.0]", cfg.SimilarityThreshold)
	}
	if cfg.MinLinesChanged < 0 {
		return fmt.Errorf("filesystem.min_lines_changed must not be negative")
	}
	if cfg.Enable && cfg.OutputFile == "" {
		return fmt.Errorf("filesystem.output_file is required when the watcher is enabled")
	}
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = 1
	}
	return nil
}

// ValidateTmuxConfig validates the tmux watcher section.
func ValidateTmuxConfig(cfg *TmuxConfig) error {
	if cfg.Enable && cfg.OutputFile == "" {
		return fmt.Errorf("tmux.output_file is required when the watcher is enabled")
	}
	if cfg.ScrollbackLines <= 0 {
		cfg.ScrollbackLines = 1000
	}
	if cfg.PollIntervalSec <= 0 {
		cfg.PollIntervalSec = 1
	}
	return nil
}

// validProviders are the completion backends with known endpoints. Any other
// value requires an explicit base_url.
var validProviders = map[string]bool{
	"openai":         true,
	"ollama":         true,
	"github_copilot": true,
}

// ValidateLLMConfig validates the llm section.
func ValidateLLMConfig(cfg *LLMConfig) error {
	if cfg.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if !validProviders[cfg.Provider] && cfg.BaseURL == "" {
		return fmt.Errorf("unknown llm provider %q requires llm.base_url", cfg.Provider)
	}
	return nil
}

// ValidateSummarizerConfig validates the summarizer section.
func ValidateSummarizerConfig(cfg *SummarizerConfig) error {
	if cfg.TokenLimit <= 0 {
		return fmt.Errorf("summarizer.token_limit must be positive, got %d", cfg.TokenLimit)
	}
	if cfg.Enable && cfg.OutputDir == "" {
		return fmt.Errorf("summarizer.output_dir is required when the summarizer is enabled")
	}
	if _, _, err := ParseClock(cfg.At); err != nil {
		return fmt.Errorf("summarizer.at: %w", err)
	}
	if cfg.TickIntervalSec <= 0 {
		cfg.TickIntervalSec = 60
	}
	return nil
}

// ParseClock parses a "HH:MM" 24-hour time of day.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// Save writes the configuration as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0o644)
}
