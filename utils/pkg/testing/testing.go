package scenestesting

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// NewLogger returns the logger used across tests. Output is discarded
// unless SCENES_TEST_VERBOSE is set, which switches to a debug-level
// console logger.
func NewLogger() *slog.Logger {
	if os.Getenv("SCENES_TEST_VERBOSE") != "" {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
