// Package seasonal derives weekly, monthly and quarterly demand
// multipliers from an annotated usage series.
package seasonal

import (
	"math"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

// Detector builds seasonal patterns. It is stateless and safe for
// concurrent use.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Detect computes bucket means per weekday, month and quarter. Buckets
// without observations take the overall mean so they stay neutral.
// Strength is the relative spread across populated buckets only. Event
// multipliers compare each tag's mean against the untagged baseline.
func (d *Detector) Detect(productID, storeID string, series []Point, asOf time.Time) *domain.SeasonalPattern {
	pattern := &domain.SeasonalPattern{
		ProductID:        productID,
		StoreID:          storeID,
		EventMultipliers: map[string]float64{},
		Observations:     len(series),
		GeneratedAt:      asOf,
	}
	if len(series) == 0 {
		return pattern
	}

	values := Values(series)
	mean := stats.Mean(values)
	pattern.Mean = mean

	weekly := newBuckets(7)
	monthly := newBuckets(12)
	quarterly := newBuckets(4)
	events := map[string][]float64{}
	var untagged []float64
	for _, p := range series {
		weekly.add(int(p.Weekday), p.Value)
		monthly.add(int(p.Month)-1, p.Value)
		quarterly.add(p.Quarter-1, p.Value)
		if p.EventTag != "" {
			events[p.EventTag] = append(events[p.EventTag], p.Value)
		} else {
			untagged = append(untagged, p.Value)
		}
	}

	pattern.WeeklyStrength = stats.RelativeSpread(weekly.fill(pattern.Weekly[:], mean))
	pattern.MonthlyStrength = stats.RelativeSpread(monthly.fill(pattern.Monthly[:], mean))
	pattern.QuarterlyStrength = stats.RelativeSpread(quarterly.fill(pattern.Quarterly[:], mean))

	baseline := stats.Mean(untagged)
	for tag, vals := range events {
		pattern.EventMultipliers[tag] = 1
		if baseline > 0 {
			pattern.EventMultipliers[tag] = stats.Mean(vals) / baseline
		}
	}

	if slope, _, err := stats.IndexFit(values); err == nil {
		pattern.TrendSlope = slope
		if mean > 0 {
			pattern.TrendStrength = math.Abs(slope) / mean
		}
	}
	return pattern
}

// WeeklyIndex returns the normalised weekly multiplier for wd, 1 when the
// pattern carries no signal.
func WeeklyIndex(p *domain.SeasonalPattern, wd time.Weekday) float64 {
	if p == nil {
		return 1
	}
	return normalised(p.Weekly[:], int(wd))
}

// MonthlyIndex returns the normalised monthly multiplier for m.
func MonthlyIndex(p *domain.SeasonalPattern, m time.Month) float64 {
	if p == nil {
		return 1
	}
	return normalised(p.Monthly[:], int(m)-1)
}

func normalised(buckets []float64, i int) float64 {
	m := stats.Mean(buckets)
	if m <= 0 || i < 0 || i >= len(buckets) {
		return 1
	}
	return buckets[i] / m
}

type buckets struct {
	sum   []float64
	count []int
}

func newBuckets(n int) *buckets {
	return &buckets{sum: make([]float64, n), count: make([]int, n)}
}

func (b *buckets) add(i int, v float64) {
	if i < 0 || i >= len(b.sum) {
		return
	}
	b.sum[i] += v
	b.count[i]++
}

// fill writes bucket means into out and returns the populated means.
func (b *buckets) fill(out []float64, fallback float64) []float64 {
	populated := make([]float64, 0, len(out))
	for i := range out {
		if b.count[i] == 0 {
			out[i] = fallback
			continue
		}
		out[i] = b.sum[i] / float64(b.count[i])
		populated = append(populated, out[i])
	}
	return populated
}
