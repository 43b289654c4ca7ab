// Package config provides configuration management for artwork-downloader.
//
// This package handles:
//   - Loading settings from a YAML file with ARTWORKDL_* environment overrides
//   - Default configuration values with per-OS directories
//   - Conversion to the path, download and filter configuration used by
//     other packages
//   - Structured logging setup
//
// # Default Settings
//
// Use DefaultSettings() to get sensible defaults:
//
//	settings := config.DefaultSettings()
//	// Downloads to ~/Pictures/Artwork/{user}
//	// Five concurrent downloads, 30s rate-limit cooldown
//	// History kept under the per-OS data directory
//
// # Loading
//
//	settings, err := config.Load("")
//
// An empty path searches the per-OS config directory and the working
// directory; a missing file there is not an error, defaults and the
// environment still apply. A non-empty path loads exactly that file.
// Environment variables override file values, for example:
//
//	ARTWORKDL_BASE_URL=https://gallery.example artwork-dl -source latest
//
// # Saving Settings
//
//	settings.DownloadsPath = "/custom/path/{user}"
//	err := settings.Save("/path/to/config.yaml")
//
// # Logging
//
//	logger, err := config.SetupLogger(&settings.Logging)
//
// Logs are written as JSON lines to the configured file. NullLogger()
// returns a logger that discards everything, useful in tests.
package config
