package util

import (
	"regexp"
	"strconv"
	"strings"
)

// SafeAtoi returns 0 for anything strconv.Atoi rejects.
func SafeAtoi(s string) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return i
}

var nonNumericRegex = regexp.MustCompile(`[^\d]`)

// CleanNumericString keeps only the digits of s ("12 commentaires" -> "12").
func CleanNumericString(s string) string {
	return nonNumericRegex.ReplaceAllString(s, "")
}

var extractSignedNumberRegex = regexp.MustCompile(`-?\d+`)

// ParseSignedNumericString returns the first signed integer in s ("-45°" -> "-45").
func ParseSignedNumericString(s string) string {
	return extractSignedNumberRegex.FindString(s)
}

// ParseCount reads a non-negative counter such as a comment badge.
func ParseCount(s string) int {
	return SafeAtoi(CleanNumericString(s))
}

// ParseScore reads a signed score such as a deal temperature.
func ParseScore(s string) int {
	return SafeAtoi(ParseSignedNumericString(s))
}
