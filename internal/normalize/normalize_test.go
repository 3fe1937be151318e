package normalize

import (
	"testing"
	"time"

	"github.com/pauljones0/brick-resale-tracker/internal/models"
)

func TestParseLocaleDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   time.Time
		wantOK bool
	}{
		{"date and time", "16/01/2025 20:47:58", time.Date(2025, 1, 16, 20, 47, 58, 0, time.UTC), true},
		{"date only defaults midnight", "16/01/2025", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), true},
		{"single digit components", "6/1/2025 8:05:00", time.Date(2025, 1, 6, 8, 5, 0, 0, time.UTC), true},
		{"hours and minutes only", "16/01/2025 20:47", time.Date(2025, 1, 16, 20, 47, 0, 0, time.UTC), true},
		{"invalid month", "31/13/2025", time.Time{}, false},
		{"invalid day for month", "31/02/2025", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"non numeric", "ab/cd/efgh", time.Time{}, false},
		{"missing year", "16/01", time.Time{}, false},
		{"iso input is not the grammar", "2025-01-16", time.Time{}, false},
		{"bad time", "16/01/2025 25:00:00", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLocaleDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseLocaleDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseLocaleDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLocaleDate_Components(t *testing.T) {
	got, ok := ParseLocaleDate("16/01/2025 20:47:58")
	if !ok {
		t.Fatal("expected date to parse")
	}
	if got.Year() != 2025 || got.Month() != time.January || got.Day() != 16 {
		t.Errorf("got %v, want 2025-01-16", got)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"12,50", 12.50, true},
		{"12.50", 12.50, true},
		{"12,50 €", 12.50, true},
		{"€ 9", 9, true},
		{"1 234,56 €", 1234.56, true},
		{"1.234,56", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"", 0, false},
		{"-5,00", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParsePrice(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDiscount(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"-25%", 25, true},
		{"40 %", 40, true},
		{"0%", 0, true},
		{"", 0, false},
		{"-120%", 0, false},
		{"promo", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDiscount(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseDiscount(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseDateFilter(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"2025-01-16", "16/01/2025", true},
		{"16/01/2025", "16/01/2025", true},
		{"16/01/2025 10:00:00", "", false},
		{"yesterday", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDateFilter(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseDateFilter(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLocaleDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2025-01-16T20:47:58Z", "16/01/2025 20:47:58"},
		{"2025-01-16T20:47:58+01:00", "16/01/2025 19:47:58"},
		{"2025-01-01T00:30:00.123+02:00", "31/12/2024 22:30:00"},
		{"2025-01-16T08:05:00", "16/01/2025 08:05:00"},
		{"2025-01-16", "16/01/2025"},
		{" 16/01/2025 20:47:58 ", "16/01/2025 20:47:58"},
		{"il y a 3 jours", "il y a 3 jours"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := LocaleDate(tt.input)
			if got != tt.want {
				t.Errorf("LocaleDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if tt.want != "" && tt.want != tt.input {
				if _, ok := ParseLocaleDate(got); !ok {
					t.Errorf("ParseLocaleDate(%q) rejected converted value", got)
				}
			}
		})
	}
}

func TestBackfillCatalogID(t *testing.T) {
	tests := []struct {
		name   string
		sale   models.Sale
		wantID string
		wantOK bool
	}{
		{"already set", models.Sale{CatalogID: "42151", Title: "Lego 75403"}, "42151", true},
		{"from title", models.Sale{Title: "Lego Star Wars 75403 Grogu neuf"}, "75403", true},
		{"first match wins", models.Sale{Title: "10300 et 21330 lot"}, "10300", true},
		{"no match", models.Sale{Title: "Lego technic 42151"}, "", false},
		{"embedded in longer number", models.Sale{Title: "ref 1075403"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.sale
			ok := BackfillCatalogID(&s)
			if ok != tt.wantOK || s.CatalogID != tt.wantID {
				t.Errorf("BackfillCatalogID() = (%q, %v), want (%q, %v)", s.CatalogID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12,50 €", "EUR"},
		{"€ 12,50", "EUR"},
		{"£8.99", "GBP"},
		{"$20", "USD"},
		{"45 CHF", "CHF"},
		{"12 EUR ($13)", "EUR"},
		{"12,50", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := DetectCurrency(tt.input); got != tt.want {
				t.Errorf("DetectCurrency(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
