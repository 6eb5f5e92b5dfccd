package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// Cadence computes the next fire time strictly after a given instant.
// Fire times are wall-clock times in the cadence's location, so DST
// transitions shift the UTC instant rather than accumulate drift.
type Cadence interface {
	Next(after time.Time) time.Time
}

// Daily fires every day at Hour:Minute.
type Daily struct {
	Hour, Minute int
	Location     *time.Location
}

func (d Daily) Next(after time.Time) time.Time {
	loc := locationOrUTC(d.Location)
	local := after.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, loc)
	if !next.After(after) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, loc)
	}
	return next
}

// Weekly fires on Weekday at Hour:Minute.
type Weekly struct {
	Weekday      time.Weekday
	Hour, Minute int
	Location     *time.Location
}

func (w Weekly) Next(after time.Time) time.Time {
	loc := locationOrUTC(w.Location)
	local := after.In(loc)
	offset := (int(w.Weekday) - int(local.Weekday()) + 7) % 7
	next := time.Date(local.Year(), local.Month(), local.Day()+offset, w.Hour, w.Minute, 0, 0, loc)
	if !next.After(after) {
		next = time.Date(local.Year(), local.Month(), local.Day()+offset+7, w.Hour, w.Minute, 0, 0, loc)
	}
	return next
}

// Monthly fires on Day of every month at Hour:Minute. Days past the end
// of a short month fire on its last day.
type Monthly struct {
	Day          int
	Hour, Minute int
	Location     *time.Location
}

func (m Monthly) Next(after time.Time) time.Time {
	loc := locationOrUTC(m.Location)
	local := after.In(loc)
	for i := 0; i < 3; i++ {
		year, month := local.Year(), local.Month()+time.Month(i)
		day := min(max(m.Day, 1), daysIn(year, month, loc))
		next := time.Date(year, month, day, m.Hour, m.Minute, 0, 0, loc)
		if next.After(after) {
			return next
		}
	}
	// unreachable for valid inputs
	return after.Add(24 * time.Hour)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, loc).Day()
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday parses an English weekday name or abbreviation.
func ParseWeekday(s string) (time.Weekday, error) {
	if d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

// CadencesFromConfig builds the nightly, weekly and monthly cadences.
func CadencesFromConfig(cfg config.ScheduleConfig) (map[domain.JobType]Cadence, error) {
	loc := cfg.Location()

	nh, nm, err := ParseClock(cfg.NightlyAt)
	if err != nil {
		return nil, fmt.Errorf("nightly: %w", err)
	}
	wh, wm, err := ParseClock(cfg.WeeklyAt)
	if err != nil {
		return nil, fmt.Errorf("weekly: %w", err)
	}
	wd, err := ParseWeekday(cfg.WeeklyDay)
	if err != nil {
		return nil, fmt.Errorf("weekly: %w", err)
	}
	mh, mm, err := ParseClock(cfg.MonthlyAt)
	if err != nil {
		return nil, fmt.Errorf("monthly: %w", err)
	}
	if cfg.MonthlyDay < 1 || cfg.MonthlyDay > 31 {
		return nil, fmt.Errorf("monthly: invalid day %d", cfg.MonthlyDay)
	}

	return map[domain.JobType]Cadence{
		domain.JobTypeNightly: Daily{Hour: nh, Minute: nm, Location: loc},
		domain.JobTypeWeekly:  Weekly{Weekday: wd, Hour: wh, Minute: wm, Location: loc},
		domain.JobTypeMonthly: Monthly{Day: cfg.MonthlyDay, Hour: mh, Minute: mm, Location: loc},
	}, nil
}
