package config

import (
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	KeyUserName     = "user.name"
	KeyLogLevel     = "log.level"
	KeyLogLimit     = "log.limit"
	KeyCacheCommits = "cache.commits"
)

// SetDefaults registers the default for every key.
func SetDefaults() {
	viper.SetDefault(KeyUserName, "unknown")
	viper.SetDefault(KeyLogLevel, "warn")
	viper.SetDefault(KeyLogLimit, 20)
	viper.SetDefault(KeyCacheCommits, 256)
}

// GetUserName returns the author stamped on new commits.
func GetUserName() string {
	name := strings.TrimSpace(viper.GetString(KeyUserName))
	if name == "" {
		return "unknown"
	}
	return name
}

// GetLogLevel returns the minimum level for diagnostics; unknown values fall
// back to warn.
func GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString(KeyLogLevel))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// GetLogLimit returns the default number of commits shown by log.
func GetLogLimit() int {
	return viper.GetInt(KeyLogLimit)
}

// GetCommitCacheSize returns the commit-record cache size.
func GetCommitCacheSize() int {
	return viper.GetInt(KeyCacheCommits)
}
