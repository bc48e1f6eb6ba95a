// Package dates normalizes the date encodings the spreadsheet emits. The
// same column can carry the visualization engine's Date(Y,M,D) encoding, an
// ISO-like string, or an already human-entered D/M/Y value depending on how
// the cell was produced.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// Date(2026,1,4) — month is zero-based in this encoding.
	engineDateRe = regexp.MustCompile(`Date\((\d+),(\d+),(\d+)\)`)
	// 2026-02-04 or 2026/02/04, possibly followed by a time component.
	isoPrefixRe = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	// 4/2/2026, 04-02-26, optionally followed by a time component.
	dayFirstRe = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})(?:\s.*)?$`)
	// Already-canonical display form, 1-2 digit day/month with 4-digit year.
	displayRe = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
)

// Fallback layouts for values no structured encoding matches.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
}

// Parse recovers a calendar date from any recognized encoding. The engine
// encoding must be tried first: it is not a standard format and generic
// parsing would reject or misread it. Returns false when nothing parses or
// the components do not form a real calendar date.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := engineDateRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2]) // zero-based
		day, _ := strconv.Atoi(m[3])
		return makeDate(year, month+1, day)
	}

	if m := isoPrefixRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return makeDate(year, month, day)
	}

	if m := dayFirstRe.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if year < 100 {
			year += 2000
		}
		return makeDate(year, month, day)
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// makeDate builds a local-midnight date and rejects components that only
// "work" through normalization (month 13, February 30).
func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.Local)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// FormatCanonical rewrites the engine and ISO encodings to the zero-padded
// DD/MM/YYYY display form. Text already in D/M/YYYY form passes through
// unchanged, as does anything unrecognized. Idempotent on its own output.
func FormatCanonical(s string) string {
	trimmed := strings.TrimSpace(s)

	if m := engineDateRe.FindStringSubmatch(trimmed); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2]) // zero-based
		day, _ := strconv.Atoi(m[3])
		return formatDisplay(year, month+1, day)
	}

	if m := isoPrefixRe.FindStringSubmatch(trimmed); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return formatDisplay(year, month, day)
	}

	if displayRe.MatchString(trimmed) {
		return s
	}

	return s
}

func formatDisplay(year, month, day int) string {
	return fmt.Sprintf("%02d/%02d/%04d", day, month, year)
}
