package normalize

import (
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice reads a locale price such as "12,50 €" or "1 234,56". Currency
// symbols and whitespace are dropped; when both separators appear the last
// one is the decimal mark.
func ParsePrice(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == ',', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case lastComma >= 0:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// ParseDiscount reads "-25%" style badges into a percentage in [0,100].
func ParseDiscount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}

var currencySymbols = map[string]string{
	"€":   "EUR",
	"EUR": "EUR",
	"£":   "GBP",
	"GBP": "GBP",
	"$":   "USD",
	"USD": "USD",
	"CHF": "CHF",
}

// DetectCurrency returns the ISO code of the first currency marker in s, or "".
func DetectCurrency(s string) string {
	best, bestIdx := "", -1
	for marker, code := range currencySymbols {
		if i := strings.Index(s, marker); i >= 0 && (bestIdx < 0 || i < bestIdx) {
			best, bestIdx = code, i
		}
	}
	return best
}
