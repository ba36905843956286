package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer("-", "_")

// Settings holds all runtime configuration for a cubeview session.
// Values are populated from .cubeview.toml, CUBEVIEW_* env vars, and CLI flags.
type Settings struct {
	Addr            string `mapstructure:"addr" toml:"addr"`
	CubeConfig      string `mapstructure:"cube-config" toml:"cube-config"`
	LogLevel        string `mapstructure:"log-level" toml:"log-level"`
	LogFormat       string `mapstructure:"log-format" toml:"log-format"`
	LogFile         string `mapstructure:"log-file" toml:"log-file"`
	TUI             bool   `mapstructure:"tui" toml:"tui"`
	OTel            string `mapstructure:"otel" toml:"otel"`
	Output          string `mapstructure:"output" toml:"output"`
	ExportPath      string `mapstructure:"export-path" toml:"export-path"`
	HistoryCapacity int    `mapstructure:"history-capacity" toml:"history-capacity"`
	Parallel        bool   `mapstructure:"parallel" toml:"parallel"`
	Refresh         string `mapstructure:"refresh" toml:"refresh"`
}

// LoadSettings reads the merged settings out of viper
func LoadSettings() (Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("reading settings: %w", err)
	}
	return s, nil
}

// ParseLevel maps a level name onto slog, unknown names are info
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger builds the slog handler the settings ask for
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetupLogging installs the default logger.
// The terminal view owns the screen, so its logs go to LogFile.
func SetupLogging(s Settings) (func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}

	if s.TUI && s.LogFile != "" {
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closer = func() { f.Close() }
	}

	slog.SetDefault(NewLogger(w, s.LogLevel, s.LogFormat))
	return closer, nil
}
