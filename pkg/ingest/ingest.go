// Package ingest parses raw occupancy log exports into validated entries.
package ingest

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultNoiseFloor is the minimum occupancy a reading must exceed to be
	// kept. Readings at or below it are sensor noise or closure artifacts.
	DefaultNoiseFloor = 5
	// Default operating window of the facility (7:10 to 22:50).
	DefaultOpenHour    = 7
	DefaultOpenMinute  = 10
	DefaultCloseHour   = 22
	DefaultCloseMinute = 50
)

// Config controls row validation. The zero value disables all filtering;
// use DefaultConfig for the production thresholds.
type Config struct {
	NoiseFloor    int  `yaml:"noise_floor"`
	WindowEnabled bool `yaml:"window_enabled"`
	OpenHour      int  `yaml:"open_hour"`
	OpenMinute    int  `yaml:"open_minute"`
	CloseHour     int  `yaml:"close_hour"`
	CloseMinute   int  `yaml:"close_minute"`
}

// DefaultConfig returns the standard validation thresholds.
func DefaultConfig() Config {
	return Config{
		NoiseFloor:    DefaultNoiseFloor,
		WindowEnabled: true,
		OpenHour:      DefaultOpenHour,
		OpenMinute:    DefaultOpenMinute,
		CloseHour:     DefaultCloseHour,
		CloseMinute:   DefaultCloseMinute,
	}
}

// Entry is one validated occupancy observation. Entries are immutable once
// produced; each ingestion cycle builds a fresh set.
type Entry struct {
	Timestamp time.Time
	DayOfWeek string
	Occupancy int
	Hour      int
}

// dayNames maps time.Weekday to the Spanish day vocabulary used by the log.
var dayNames = [7]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

// DayNameFor returns the canonical Spanish day name for a point in time.
func DayNameFor(t time.Time) string {
	return NormalizeDayName(dayNames[t.Weekday()])
}

// DetectDelimiter returns whichever of ',' or ';' appears first in the
// header line, defaulting to ','.
func DetectDelimiter(header string) rune {
	for _, r := range header {
		if r == ',' || r == ';' {
			return r
		}
	}
	return ','
}

// NormalizeDayName canonicalizes a day-of-week name: lowercases, strips one
// trailing doubled letter (the locale formatter can emit "luness" for plural
// forms), strips a plural "s" when the remainder is a known day name
// ("sábados" to "sábado"), and capitalizes the first letter.
func NormalizeDayName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	runes := []rune(s)
	if n := len(runes); n >= 2 && runes[n-1] == runes[n-2] {
		runes = runes[:n-1]
	}
	// The vocabulary check keeps names that end in "s" on their own
	// ("lunes", "martes") intact.
	if n := len(runes); n >= 2 && runes[n-1] == 's' && isCanonicalDay(string(runes[:n-1])) {
		runes = runes[:n-1]
	}
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func isCanonicalDay(s string) bool {
	for _, name := range dayNames {
		if s == name {
			return true
		}
	}
	return false
}

// SameDay reports whether two day names refer to the same weekday,
// ignoring case and plural artifacts.
func SameDay(a, b string) bool {
	return strings.EqualFold(NormalizeDayName(a), NormalizeDayName(b))
}

// ParseDataset parses a full delimited export: the first line is a header
// used only for delimiter detection, every following non-blank line is one
// candidate record. Malformed or filtered rows are dropped silently; the
// result is a pure function of the input text and config.
func ParseDataset(text string, cfg Config) []Entry {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return nil
	}

	delim := DetectDelimiter(lines[0])
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if entry, ok := ParseRow(line, delim, cfg); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// ParseRow parses one raw record line into an Entry. The second return is
// false when the row is malformed or filtered out; a bad row never affects
// the rest of the batch.
func ParseRow(line string, delim rune, cfg Config) (Entry, bool) {
	fields := strings.Split(line, string(delim))
	if len(fields) < 3 {
		return Entry{}, false
	}
	for i, f := range fields {
		fields[i] = cleanField(f)
	}

	day, month, year, ok := parseDate(fields[0])
	if !ok {
		return Entry{}, false
	}
	hour, minute, ok := parseClock(fields[1])
	if !ok {
		return Entry{}, false
	}
	occupancy, ok := parsePercent(fields[2])
	if !ok {
		return Entry{}, false
	}

	if cfg.WindowEnabled && !insideWindow(hour, minute, cfg) {
		return Entry{}, false
	}
	if occupancy <= cfg.NoiseFloor {
		return Entry{}, false
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	return Entry{
		Timestamp: ts,
		Occupancy: occupancy,
		DayOfWeek: DayNameFor(ts),
		Hour:      hour,
	}, true
}

// cleanField strips surrounding whitespace and quote characters.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// parseDate accepts day/month/year with '/' or '-' separators. A two-digit
// year is interpreted as 2000+year.
func parseDate(s string) (day, month, year int, ok bool) {
	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	var err error
	if day, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, 0, false
	}
	if month, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, 0, 0, false
	}
	if year, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
		return 0, 0, 0, false
	}
	if year < 100 {
		year += 2000
	}
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return 0, 0, 0, false
	}
	return day, month, year, true
}

// parseClock accepts "hour:minute"; a bare hour means minute 0.
func parseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 3)
	var err error
	if hour, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return 0, 0, false
	}
	if len(parts) > 1 {
		if minute, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return 0, 0, false
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// parsePercent parses an occupancy percentage field: a trailing '%' is
// stripped, a decimal comma becomes a decimal point, and the value is
// rounded to the nearest integer. A non-numeric field parses as 0, which
// the noise floor then rejects.
func parsePercent(s string) (int, bool) {
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		value = 0
	}
	rounded := int(value + 0.5)
	if value < 0 {
		rounded = int(value - 0.5)
	}
	if rounded < 0 || rounded > 100 {
		return 0, false
	}
	return rounded, true
}

func insideWindow(hour, minute int, cfg Config) bool {
	t := hour*60 + minute
	return t >= cfg.OpenHour*60+cfg.OpenMinute && t <= cfg.CloseHour*60+cfg.CloseMinute
}
