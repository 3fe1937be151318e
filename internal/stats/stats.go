// Package stats summarizes resale prices and listing lifetime for one
// catalog item.
package stats

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/pauljones0/brick-resale-tracker/internal/models"
	"github.com/pauljones0/brick-resale-tracker/internal/normalize"
)

// Stats is the indicator summary for a set of sales.
type Stats struct {
	Count        int     `json:"count"`
	Average      float64 `json:"average"`
	P5           float64 `json:"p5"`
	P25          float64 `json:"p25"`
	P50          float64 `json:"p50"`
	LifetimeDays int     `json:"lifetimeDays"`
	Lifetime     string  `json:"lifetime"`
}

// Compute summarizes sales. Sales without a valid price are left out of the
// price math; sales without a parseable publishedAt are left out of the
// lifetime.
func Compute(sales []models.Sale) Stats {
	prices := make([]float64, 0, len(sales))
	dates := make([]time.Time, 0, len(sales))
	for _, s := range sales {
		if s.Price != nil && *s.Price >= 0 && !math.IsNaN(*s.Price) {
			prices = append(prices, *s.Price)
		}
		if t, ok := normalize.ParseLocaleDate(s.PublishedAt); ok {
			dates = append(dates, t)
		}
	}
	slices.Sort(prices)

	days := LifetimeDays(dates)
	st := Stats{
		Count:        len(prices),
		LifetimeDays: days,
		Lifetime:     FormatLifetime(days),
	}
	if len(prices) == 0 {
		return st
	}

	var sum float64
	for _, p := range prices {
		sum += p
	}
	st.Average = round2(sum / float64(len(prices)))
	st.P5 = Percentile(prices, 5)
	st.P25 = Percentile(prices, 25)
	st.P50 = Percentile(prices, 50)
	return st
}

// Percentile returns the nearest-rank percentile p (0-100) of sorted:
// sorted[floor(p/100*n)], clamped to the last index. No interpolation.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(p / 100 * float64(n)))
	idx = max(0, min(idx, n-1))
	return sorted[idx]
}

// LifetimeDays is the span in whole days between the earliest and latest
// instants. A single instant counts as one day; none counts as zero.
func LifetimeDays(instants []time.Time) int {
	switch len(instants) {
	case 0:
		return 0
	case 1:
		return 1
	}
	first, last := slices.MinFunc(instants, time.Time.Compare), slices.MaxFunc(instants, time.Time.Compare)
	days := int(math.Round(last.Sub(first).Hours() / 24))
	return max(1, days)
}

// FormatLifetime renders days as "0 days", "1 day", "N days".
func FormatLifetime(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
