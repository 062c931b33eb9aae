package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "ROBOTSERVER_LOG_LEVEL"
	EnvLogTimestamp = "ROBOTSERVER_LOG_TIMESTAMP"
	EnvLogNoColor   = "ROBOTSERVER_LOG_NOCOLOR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var (
	configureOnce sync.Once
	noColor       bool
	timestamps    = true
)

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure sets the global zerolog level and console-writer options once
// per process, honoring ROBOTSERVER_LOG_LEVEL / _TIMESTAMP / _NOCOLOR if
// set. Later calls are no-ops.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		level := defaultLevel(profile)
		if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
			level = lvl
		}
		zerolog.SetGlobalLevel(level)

		if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
			timestamps = v
		} else {
			timestamps = profile != ProfileTest
		}
		if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
			noColor = v
		}
	})
}

// NoColor reports whether the console writer should suppress ANSI color.
func NoColor() bool {
	return noColor
}

// Timestamps reports whether log lines should carry a timestamp field.
func Timestamps() bool {
	return timestamps
}

func defaultLevel(profile Profile) zerolog.Level {
	switch profile {
	case ProfileTest:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
