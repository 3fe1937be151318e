// Package normalize turns the locale-formatted strings found on marketplace
// pages into canonical values. Every function is total: bad input yields a
// false ok flag, never a panic or an error.
package normalize

import (
	"strings"
	"time"
)

const (
	isoLayout       = "2006-01-02T15:04:05"
	datePrefixShape = "02/01/2006"
	localeLayout    = "02/01/2006 15:04:05"
	defaultTime     = "00:00:00"
)

// ParseLocaleDate parses DD/MM/YYYY[ HH:MM:SS] into an instant. Input carries
// no zone, so the result is in UTC.
func ParseLocaleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	parts := strings.Split(s, " ")
	datePart := parts[0]
	timePart := defaultTime
	if len(parts) > 1 && parts[1] != "" {
		timePart = parts[1]
	}
	if strings.Count(timePart, ":") == 1 {
		timePart += ":00"
	}

	dmy := strings.Split(datePart, "/")
	if len(dmy) != 3 {
		return time.Time{}, false
	}
	day, month, year := pad2(dmy[0]), pad2(dmy[1]), dmy[2]
	if !allDigits(day) || !allDigits(month) || len(year) != 4 || !allDigits(year) {
		return time.Time{}, false
	}

	hms := strings.Split(timePart, ":")
	for i := range hms {
		hms[i] = pad2(hms[i])
	}

	t, err := time.Parse(isoLayout, year+"-"+month+"-"+day+"T"+strings.Join(hms, ":"))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LocaleDate rewrites machine timestamps into the DD/MM/YYYY HH:MM:SS shape
// ParseLocaleDate reads. ISO-8601 instants, as carried by <time datetime>,
// are converted to UTC and a bare YYYY-MM-DD keeps only the date. Anything
// else is returned trimmed and unchanged.
func LocaleDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, isoLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(localeLayout)
		}
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return FormatDatePrefix(t)
	}
	return s
}

// FormatDatePrefix renders t the way sources store dates, for prefix filters.
func FormatDatePrefix(t time.Time) string {
	return t.Format(datePrefixShape)
}

// ParseDateFilter accepts YYYY-MM-DD or DD/MM/YYYY and returns the DD/MM/YYYY
// prefix used to match stored date strings.
func ParseDateFilter(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return FormatDatePrefix(t), true
	}
	if t, ok := ParseLocaleDate(s); ok && !strings.Contains(s, " ") {
		return FormatDatePrefix(t), true
	}
	return "", false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
