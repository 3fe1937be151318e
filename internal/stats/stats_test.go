package stats

import (
	"testing"
	"time"

	"github.com/pauljones0/brick-resale-tracker/internal/models"
)

func sale(price *float64, publishedAt string) models.Sale {
	return models.Sale{CatalogID: "75192", Title: "Lego 75192", URL: "https://www.vinted.fr/items/1", Price: price, PublishedAt: publishedAt}
}

func p(f float64) *float64 { return &f }

func TestCompute(t *testing.T) {
	sales := []models.Sale{
		sale(p(100), "20/01/2025"),
		sale(p(20), "10/01/2025 08:00:00"),
		sale(p(40), ""),
		sale(p(10), "not a date"),
		sale(p(30), "13/01/2025"),
	}

	got := Compute(sales)
	if got.Count != 5 {
		t.Errorf("Count = %d, want 5", got.Count)
	}
	if got.Average != 40 {
		t.Errorf("Average = %v, want 40", got.Average)
	}
	if got.P5 != 10 {
		t.Errorf("P5 = %v, want 10", got.P5)
	}
	if got.P25 != 20 {
		t.Errorf("P25 = %v, want 20", got.P25)
	}
	if got.P50 != 30 {
		t.Errorf("P50 = %v, want 30", got.P50)
	}
	// 10/01 08:00 -> 20/01 00:00 is 9.67 days.
	if got.LifetimeDays != 10 || got.Lifetime != "10 days" {
		t.Errorf("Lifetime = %d (%q), want 10 days", got.LifetimeDays, got.Lifetime)
	}
}

func TestCompute_Empty(t *testing.T) {
	tests := []struct {
		name  string
		sales []models.Sale
	}{
		{"nil", nil},
		{"no valid prices", []models.Sale{sale(nil, ""), sale(nil, "bad")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.sales)
			want := Stats{Lifetime: "0 days"}
			if got != want {
				t.Errorf("Compute() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestCompute_SkipsMissingPrices(t *testing.T) {
	got := Compute([]models.Sale{sale(nil, "01/02/2025"), sale(p(12.345), ""), sale(p(12.34), "")})
	if got.Count != 2 {
		t.Errorf("Count = %d, want 2", got.Count)
	}
	if got.Average != 12.34 {
		t.Errorf("Average = %v, want 12.34", got.Average)
	}
	if got.Lifetime != "1 day" {
		t.Errorf("Lifetime = %q, want 1 day", got.Lifetime)
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 100}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 10},
		{5, 10},
		{25, 20},
		{50, 30},
		{99, 100},
		{100, 100},
	}
	for _, tt := range tests {
		if got := Percentile(sorted, tt.p); got != tt.want {
			t.Errorf("Percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := Percentile(nil, 50); got != 0 {
		t.Errorf("Percentile(nil) = %v, want 0", got)
	}
}

func TestPercentile_Monotonic(t *testing.T) {
	lists := [][]float64{
		{1},
		{5, 5, 5},
		{1, 2},
		{3, 7, 7, 8, 20, 21, 22, 90},
		{0, 0.5, 1, 1.5, 2, 2.5, 3, 3.5, 4, 4.5, 5, 5.5, 6, 6.5, 7, 7.5, 8, 8.5, 9, 9.5, 10},
	}
	for _, sorted := range lists {
		p5, p25, p50 := Percentile(sorted, 5), Percentile(sorted, 25), Percentile(sorted, 50)
		if p5 > p25 || p25 > p50 {
			t.Errorf("Percentiles not monotonic for %v: p5=%v p25=%v p50=%v", sorted, p5, p25, p50)
		}
	}
}

func TestLifetimeDays(t *testing.T) {
	base := time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		instants []time.Time
		want     int
	}{
		{"none", nil, 0},
		{"one", []time.Time{base}, 1},
		{"same instant twice", []time.Time{base, base}, 1},
		{"six hours", []time.Time{base, base.Add(6 * time.Hour)}, 1},
		{"unsorted", []time.Time{base.AddDate(0, 0, 30), base, base.AddDate(0, 0, 3)}, 30},
		{"rounds half up", []time.Time{base, base.Add(36 * time.Hour)}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LifetimeDays(tt.instants); got != tt.want {
				t.Errorf("LifetimeDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatLifetime(t *testing.T) {
	tests := map[int]string{0: "0 days", 1: "1 day", 2: "2 days", 21: "21 days"}
	for days, want := range tests {
		if got := FormatLifetime(days); got != want {
			t.Errorf("FormatLifetime(%d) = %q, want %q", days, got, want)
		}
	}
}
