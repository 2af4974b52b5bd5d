// Package datefmt parses the report dates found in stored data. Older records
// were written in several ad-hoc layouts; everything written now uses
// Canonical.
package datefmt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	Canonical = "2006-01-02"
	Display   = "02/01/2006"
	Timestamp = "2006-01-02 15:04:05"
)

// layouts are tried in order. Day-first wins over month-first for
// ambiguous slash dates, which matches how the reports were filled in.
var layouts = []string{
	Canonical,
	"02/01/2006",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	Timestamp,
}

var dateLike = regexp.MustCompile(`(\d{2,4}[-/.]\d{1,2}[-/.]\d{1,4})`)

var ErrUnparseable = errors.New("unrecognized date format")

// Parse returns the calendar date in s as a UTC midnight time.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse date: %w", ErrUnparseable)
	}
	if t, ok := tryLayouts(s); ok {
		return t, nil
	}
	// "2025-04-13 10:00", "13/04/2025 manhã", ...
	if first := strings.Fields(s)[0]; first != s {
		if t, ok := tryLayouts(first); ok {
			return t, nil
		}
	}
	if m := dateLike.FindString(s); m != "" {
		if t, ok := tryLayouts(m); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: %w", s, ErrUnparseable)
}

// Normalize rewrites any accepted layout to Canonical.
func Normalize(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return t.Format(Canonical), nil
}

// ToDisplay formats s as DD/MM/YYYY, or returns s untouched when it cannot be parsed.
func ToDisplay(s string) string {
	t, err := Parse(s)
	if err != nil {
		return s
	}
	return t.Format(Display)
}

// Today is the current local calendar date.
func Today() time.Time {
	return DateOf(time.Now())
}

// DateOf drops the clock and zone from t.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tryLayouts(s string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), true
		}
	}
	return time.Time{}, false
}
