// Package logging configures the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
)

// DebugEnvVar enables debug logging when set to "1" or "true".
const DebugEnvVar = "STELLAR_DESKTOP_DEBUG"

// Setup installs a text handler on stderr as the default logger. Debug mode
// lowers the level and annotates records with their source location, which
// is worth the overhead only when chasing a problem.
func Setup(debug bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debug {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

// SetupFromEnv configures the logger from DebugEnvVar.
// Call this once at application startup.
func SetupFromEnv() {
	v := os.Getenv(DebugEnvVar)
	Setup(v == "1" || v == "true")
}
