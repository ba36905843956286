package cubeview

import (
	"log/slog"
	"os"
	"strconv"
)

// FillEnvVarInt reads an integer Environment Variable,
// falling back to def when it is unset or not a number
func FillEnvVarInt(ev string, def int) int {
	raw := os.Getenv(ev)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Not an integer, using default",
			slog.String("var", ev), slog.Int("default", def), slog.Any("Error", err))
		return def
	}
	return n
}
