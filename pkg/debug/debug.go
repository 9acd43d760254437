// Package debug provides category-gated debug logging.
//
// Categories select WHAT is logged (auth, jwt, session, ratelimit, users,
// all); the slog level decides HOW MUCH. Categories come from
// logging.debug in the config or the STREETBALL_DEBUG environment variable,
// which wins.
//
//	debug.Log("jwt", "token verified", "subject", sub)
package debug

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
const LevelTrace = slog.LevelDebug - 4

var categories atomic.Pointer[map[string]bool]

func init() {
	Init("")
}

// Init sets the enabled categories. STREETBALL_DEBUG overrides configured.
func Init(configured string) {
	if env := os.Getenv("STREETBALL_DEBUG"); env != "" {
		configured = env
	}
	m := parseCategories(configured)
	categories.Store(&m)
}

// Enabled reports whether debug output is active for the category.
func Enabled(category string) bool {
	m := *categories.Load()
	return m["all"] || m[category]
}

// Log emits a debug record for the category through the default logger.
// It is a no-op when the category is disabled.
func Log(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level record for the category.
func Trace(category, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// ParseLevel converts a level name, including TRACE, to a slog.Level.
// Unknown names yield Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Categories returns the enabled categories in sorted order.
func Categories() []string {
	m := *categories.Load()
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Truncate shortens s to maxLen bytes, appending "..." when cut. Tokens are
// truncated before they are logged.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		if cat = strings.ToLower(strings.TrimSpace(cat)); cat != "" {
			m[cat] = true
		}
	}
	return m
}
