package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/handiism/artwork-downloader/internal/download"
	"github.com/handiism/artwork-downloader/internal/filter"
	"github.com/handiism/artwork-downloader/internal/model"
)

// Settings holds all configuration options.
type Settings struct {
	// Gallery settings
	BaseURL string `mapstructure:"base_url"`

	// Download settings
	DownloadsPath              string `mapstructure:"downloads_path"`
	PageFileNameFormat         string `mapstructure:"page_file_name_format"`
	MaxConcurrentDownloads     int    `mapstructure:"max_concurrent_downloads"`
	MaxConcurrentPageDownloads int    `mapstructure:"max_concurrent_page_downloads"`
	DispatchDelayMS            int    `mapstructure:"dispatch_delay_ms"`
	EmptyBatchDelayMS          int    `mapstructure:"empty_batch_delay_ms"`
	RateLimitCooldownMS        int    `mapstructure:"rate_limit_cooldown_ms"`
	MaxGIFWidth                int    `mapstructure:"max_gif_width"`

	// History settings
	HistoryPath    string `mapstructure:"history_path"`
	SkipDownloaded bool   `mapstructure:"skip_downloaded"`

	// Filter settings
	AllowedTags   []string `mapstructure:"allowed_tags"`
	DeniedTags    []string `mapstructure:"denied_tags"`
	Kinds         []string `mapstructure:"kinds"`
	MultiPageOnly bool     `mapstructure:"multi_page_only"`
	InlineFilter  bool     `mapstructure:"inline_filter"`

	// Logging settings
	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		DownloadsPath:              filepath.Join(homeDir, "Pictures", "Artwork", "{user}"),
		PageFileNameFormat:         "{id}_p{page}",
		MaxConcurrentDownloads:     5,
		MaxConcurrentPageDownloads: 3,
		DispatchDelayMS:            500,
		EmptyBatchDelayMS:          1000,
		RateLimitCooldownMS:        30000,

		HistoryPath:    filepath.Join(defaultDataPath(), "history.db"),
		SkipDownloaded: true,

		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultConfigPath returns the default config directory for the current OS.
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "artwork-dl")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "artwork-dl")
	}
}

// defaultDataPath returns the default data directory for the current OS.
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "artwork-dl")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "artwork-dl")
	}
}

// defaultLogPath returns the default log file path for the current OS.
func defaultLogPath() string {
	return filepath.Join(defaultDataPath(), "artwork-dl.log")
}

// Load reads settings from a YAML file and the environment.
//
// A non-empty path loads exactly that file and a missing file is an error.
// An empty path searches the per-OS config directory and the working
// directory, and a missing file is tolerated. Environment variables with
// the ARTWORKDL prefix override file values either way.
func Load(path string) (*Settings, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ARTWORKDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only covers keys viper already knows, so every key is
	// registered with its default before reading.
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return settings, nil
}

// setDefaults registers every settings key with its default value.
func setDefaults(v *viper.Viper) {
	def := DefaultSettings()

	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("downloads_path", def.DownloadsPath)
	v.SetDefault("page_file_name_format", def.PageFileNameFormat)
	v.SetDefault("max_concurrent_downloads", def.MaxConcurrentDownloads)
	v.SetDefault("max_concurrent_page_downloads", def.MaxConcurrentPageDownloads)
	v.SetDefault("dispatch_delay_ms", def.DispatchDelayMS)
	v.SetDefault("empty_batch_delay_ms", def.EmptyBatchDelayMS)
	v.SetDefault("rate_limit_cooldown_ms", def.RateLimitCooldownMS)
	v.SetDefault("max_gif_width", def.MaxGIFWidth)
	v.SetDefault("history_path", def.HistoryPath)
	v.SetDefault("skip_downloaded", def.SkipDownloaded)
	v.SetDefault("allowed_tags", def.AllowedTags)
	v.SetDefault("denied_tags", def.DeniedTags)
	v.SetDefault("kinds", def.Kinds)
	v.SetDefault("multi_page_only", def.MultiPageOnly)
	v.SetDefault("inline_filter", def.InlineFilter)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.level", def.Logging.Level)
}

// Save writes settings to a YAML file. When path is empty the default
// config location is used. Parent directories are created as needed.
func (s *Settings) Save(path string) error {
	if path == "" {
		path = filepath.Join(defaultConfigPath(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("base_url", s.BaseURL)
	v.Set("downloads_path", s.DownloadsPath)
	v.Set("page_file_name_format", s.PageFileNameFormat)
	v.Set("max_concurrent_downloads", s.MaxConcurrentDownloads)
	v.Set("max_concurrent_page_downloads", s.MaxConcurrentPageDownloads)
	v.Set("dispatch_delay_ms", s.DispatchDelayMS)
	v.Set("empty_batch_delay_ms", s.EmptyBatchDelayMS)
	v.Set("rate_limit_cooldown_ms", s.RateLimitCooldownMS)
	v.Set("max_gif_width", s.MaxGIFWidth)
	v.Set("history_path", s.HistoryPath)
	v.Set("skip_downloaded", s.SkipDownloaded)
	v.Set("allowed_tags", s.AllowedTags)
	v.Set("denied_tags", s.DeniedTags)
	v.Set("kinds", s.Kinds)
	v.Set("multi_page_only", s.MultiPageOnly)
	v.Set("inline_filter", s.InlineFilter)
	v.Set("logging.file", s.Logging.File)
	v.Set("logging.level", s.Logging.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured reports whether the gallery base URL has been set.
func (s *Settings) IsConfigured() bool {
	return s.BaseURL != ""
}

// ToPathConfig converts settings to PathConfig.
func (s *Settings) ToPathConfig() *model.PathConfig {
	return &model.PathConfig{
		DownloadsPath:      s.DownloadsPath,
		PageFileNameFormat: s.PageFileNameFormat,
	}
}

// ToDownloadConfig converts settings to the download manager's Config.
// Delay values are stored in the config file as milliseconds.
func (s *Settings) ToDownloadConfig() download.Config {
	return download.Config{
		Concurrency:     s.MaxConcurrentDownloads,
		DispatchDelay:   time.Duration(s.DispatchDelayMS) * time.Millisecond,
		EmptyBatchDelay: time.Duration(s.EmptyBatchDelayMS) * time.Millisecond,
		Cooldown:        time.Duration(s.RateLimitCooldownMS) * time.Millisecond,
	}
}

// Filter assembles the filter pipeline described by the settings.
//
// hasDownloaded backs the skip-downloaded rule and may be nil to disable
// it. The returned pipeline is nil when no filtering is configured at all,
// in which case every discovered work is downloaded.
func (s *Settings) Filter(hasDownloaded func(id int64) (bool, error), logger *slog.Logger) (*filter.Pipeline, error) {
	var includes []filter.Predicate
	for _, name := range s.Kinds {
		kind, err := model.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("kinds: %w", err)
		}
		includes = append(includes, filter.ByKind(kind))
	}
	if s.MultiPageOnly {
		includes = append(includes, filter.MultiPage())
	}

	var excludes []filter.Predicate
	if s.SkipDownloaded && hasDownloaded != nil {
		excludes = append(excludes, filter.Downloaded(hasDownloaded))
	}

	tags := filter.TagRules{Allow: s.AllowedTags, Deny: s.DeniedTags}
	tagged := len(tags.Allow) > 0 || len(tags.Deny) > 0

	if len(includes) == 0 && len(excludes) == 0 && !tagged {
		return nil, nil
	}

	// A pipeline with no include rules rejects everything, so narrowing
	// by exclusion alone still needs a base include.
	if len(includes) == 0 {
		includes = append(includes, filter.Everything())
	}

	return filter.New(tags, append(includes, excludes...), logger), nil
}
