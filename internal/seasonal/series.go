package seasonal

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// Point is one day of usage annotated with calendar features.
type Point struct {
	Index       int
	Date        time.Time
	Value       float64
	Weekday     time.Weekday
	Month       time.Month
	Quarter     int
	DayOfYear   int
	Weekend     bool
	IsHoliday   bool
	IsPromotion bool
	EventTag    string
}

// Annotate sorts history by date, merges same-day observations and
// attaches calendar features. Holidays and promotions found in factors
// mark the matching days as well as the observation's own event tag.
func Annotate(productID string, history []domain.UsageObservation, factors *domain.ExternalFactors) []Point {
	if len(history) == 0 {
		return nil
	}

	sorted := make([]domain.UsageObservation, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	holidays := map[string]bool{}
	var promos []domain.Promotion
	if factors != nil {
		for _, h := range factors.Holidays {
			holidays[dayKey(h.Date)] = true
		}
		promos = factors.Promotions
	}

	points := make([]Point, 0, len(sorted))
	for _, obs := range sorted {
		day := truncateDay(obs.Date)
		if n := len(points); n > 0 && points[n-1].Date.Equal(day) {
			points[n-1].Value += obs.Quantity
			if obs.EventTag != "" {
				points[n-1].EventTag = obs.EventTag
			}
			continue
		}

		p := CalendarPoint(day)
		p.Index = len(points)
		p.Value = obs.Quantity
		p.EventTag = obs.EventTag
		p.IsHoliday = obs.EventTag == domain.EventTagHoliday || holidays[dayKey(day)]
		p.IsPromotion = obs.EventTag == domain.EventTagPromo
		for _, promo := range promos {
			if !promo.StartsAt.IsZero() && !promo.EndsAt.IsZero() && promo.AppliesTo(productID, day) {
				p.IsPromotion = true
				break
			}
		}
		points = append(points, p)
	}

	for i := range points {
		if points[i].EventTag == domain.EventTagHoliday {
			points[i].IsHoliday = true
		}
		if points[i].EventTag == domain.EventTagPromo {
			points[i].IsPromotion = true
		}
	}
	return points
}

// CalendarPoint returns a point carrying only the calendar features of day.
func CalendarPoint(day time.Time) Point {
	wd := day.Weekday()
	return Point{
		Date:      day,
		Weekday:   wd,
		Month:     day.Month(),
		Quarter:   (int(day.Month())-1)/3 + 1,
		DayOfYear: day.YearDay(),
		Weekend:   wd == time.Saturday || wd == time.Sunday,
	}
}

// Future returns horizon calendar points following the last point.
func Future(series []Point, horizon int) []Point {
	if len(series) == 0 || horizon <= 0 {
		return nil
	}
	last := series[len(series)-1]
	out := make([]Point, horizon)
	for i := 0; i < horizon; i++ {
		p := CalendarPoint(last.Date.AddDate(0, 0, i+1))
		p.Index = last.Index + i + 1
		out[i] = p
	}
	return out
}

// Values extracts the usage values of a series.
func Values(series []Point) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Value
	}
	return out
}

// Fingerprint identifies a usage history for cache invalidation: it changes
// whenever observations are added, removed or their quantities change.
func Fingerprint(history []domain.UsageObservation) string {
	if len(history) == 0 {
		return "empty"
	}
	first, last := history[0].Date, history[0].Date
	var sum float64
	for _, obs := range history {
		if obs.Date.Before(first) {
			first = obs.Date
		}
		if obs.Date.After(last) {
			last = obs.Date
		}
		sum += obs.Quantity
	}
	raw := fmt.Sprintf("%d|%s|%s|%.6f", len(history), dayKey(first), dayKey(last), sum)
	h := sha1.Sum([]byte(raw))
	return hex.EncodeToString(h[:8])
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
