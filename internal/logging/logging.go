// Package logging provides the single hclog.Logger instance shared by
// every package in this module, configured from environment variables
// the way opentofu's internal/logging package configures its own
// top-level logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// EnvLog names the environment variable that sets the log level
// ("trace", "debug", "info", "warn", "error"); unset or unrecognized
// disables logging entirely.
const EnvLog = "GOBUILD_LOG"

// EnvLogPath names the environment variable that redirects log output
// to a file instead of stderr.
const EnvLogPath = "GOBUILD_LOG_PATH"

// HCLogger returns the process-wide root logger, creating it on first
// use from the environment. Subsystems call HCLogger().Named("...") to
// get a scoped child logger rather than constructing their own.
var HCLogger = sync.OnceValue(func() hclog.Logger {
	level := levelFromEnv()
	output := outputFromEnv()
	return hclog.New(&hclog.LoggerOptions{
		Name:            "gobuild",
		Level:           level,
		Output:          output,
		IndependentLevels: true,
	})
})

func levelFromEnv() hclog.Level {
	raw := strings.TrimSpace(os.Getenv(EnvLog))
	if raw == "" {
		return hclog.Off
	}
	level := hclog.LevelFromString(raw)
	if level == hclog.NoLevel {
		return hclog.Off
	}
	return level
}

func outputFromEnv() io.Writer {
	path := os.Getenv(EnvLogPath)
	if path == "" {
		return os.Stderr
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr
	}
	return f
}
