package logscan

import (
	"regexp"
	"strings"
	"time"
)

const (
	LevelError = "ERROR"
	LevelWarn  = "WARN"
	LevelInfo  = "INFO"
	LevelDebug = "DEBUG"
	LevelTrace = "TRACE"
	LevelFatal = "FATAL"
)

var (
	isoTimestamp   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
	spaceTimestamp = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?`)
	levelKeyword   = regexp.MustCompile(`(?i)\b(ERROR|WARN(?:ING)?|INFO|DEBUG|TRACE|FATAL)\b`)
	// klog header, e.g. "E0612 10:04:05.123456       1 controller.go:42]"
	klogHeader = regexp.MustCompile(`^([IWEF])\d{4} \d{2}:\d{2}:\d{2}\.\d+\s+\d+ `)
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
}

var klogLevels = map[string]string{
	"I": LevelInfo,
	"W": LevelWarn,
	"E": LevelError,
	"F": LevelFatal,
}

// parseTimestamp finds the first ISO-8601 timestamp in line, falling back to
// a space separated date and time. The raw match is returned even when it
// cannot be parsed. Timestamps without a zone are read as UTC.
func parseTimestamp(line string) (*time.Time, string) {
	if raw := isoTimestamp.FindString(line); raw != "" {
		value := strings.Replace(raw, ",", ".", 1)
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				t = t.UTC()
				return &t, raw
			}
		}
		return nil, raw
	}

	if raw := spaceTimestamp.FindString(line); raw != "" {
		value := strings.Replace(raw, ",", ".", 1)
		if t, err := time.Parse("2006-01-02 15:04:05.999999999", value); err == nil {
			return &t, raw
		}
		return nil, raw
	}

	return nil, ""
}

// parseLevel returns the first level keyword in line, normalising WARNING to
// WARN. Lines without a keyword fall back to the klog severity letter.
func parseLevel(line string) string {
	if m := levelKeyword.FindStringSubmatch(line); m != nil {
		level := strings.ToUpper(m[1])
		if strings.HasPrefix(level, LevelWarn) {
			return LevelWarn
		}
		return level
	}
	if m := klogHeader.FindStringSubmatch(line); m != nil {
		return klogLevels[m[1]]
	}
	return ""
}
