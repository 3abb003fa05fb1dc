// Package calendar evaluates a maintenance's period rules against a
// candidate start instant, producing a concrete [since, until) running
// interval (spec.md §4.6).
//
// The walk-one-day-backward idiom used by Weekly and Monthly mirrors
// meenmo-molib's calendar.AddBusinessDays, which advances a time.Time
// one calendar day at a time and tests a business-day predicate at
// each step; here the predicate is "does this day satisfy the period
// rule" instead of "is this day a business day", and the walk runs
// backward from probeStart rather than forward from an anchor.
package calendar

import (
	"time"

	"github.com/terrydash/zbxcore/maintenance"
)

const secPerDay = 86400
const secPerWeek = 7 * secPerDay

// Evaluate converts period p's rule, combined with maintenance m's
// active window, into a concrete running interval anchored at
// probeStart (the candidate period start on the current day, computed
// by the caller per spec.md §4.6). It returns ok=false when the rule
// produces no valid interval for this probe.
func Evaluate(m *maintenance.Maintenance, p *maintenance.MaintenancePeriod, probeStart int64) (since, until int64, ok bool) {
	switch p.Kind {
	case maintenance.OneTime:
		return evalOneTime(m, p)
	case maintenance.Daily:
		return evalDaily(m, p, probeStart)
	case maintenance.Weekly:
		return evalWeekly(m, p, probeStart)
	case maintenance.Monthly:
		return evalMonthly(m, p, probeStart)
	default:
		return 0, 0, false
	}
}

func evalOneTime(m *maintenance.Maintenance, p *maintenance.MaintenancePeriod) (int64, int64, bool) {
	since := maxInt64(p.StartDate, m.ActiveSince)
	until := minInt64(p.StartDate+p.Period, m.ActiveUntil)
	return since, until, true
}

func evalDaily(m *maintenance.Maintenance, p *maintenance.MaintenancePeriod, probeStart int64) (int64, int64, bool) {
	if probeStart < m.ActiveSince {
		return 0, 0, false
	}
	activeSinceDay := dayFloor(m.ActiveSince)
	day := (probeStart - activeSinceDay) / secPerDay
	every := int64(normalizeEvery(p.Every))
	probeStart -= secPerDay * (day % every)

	since := probeStart
	until := minInt64(since+p.Period, m.ActiveUntil)
	return since, until, true
}

func evalWeekly(m *maintenance.Maintenance, p *maintenance.MaintenancePeriod, probeStart int64) (int64, int64, bool) {
	activeSinceWeekStart := weekFloor(m.ActiveSince)
	every := int64(normalizeEvery(p.Every))

	candidate := dayFloor(probeStart)
	for candidate >= activeSinceWeekStart {
		weekIndex := (candidate - activeSinceWeekStart) / secPerWeek
		weekday := isoWeekday(candidate)
		if weekIndex%every == 0 && p.DayOfWeek&(uint8(1)<<uint(weekday)) != 0 {
			since := candidate + p.StartTime
			until := minInt64(since+p.Period, m.ActiveUntil)
			return since, until, true
		}
		candidate -= secPerDay
	}
	return 0, 0, false
}

func evalMonthly(m *maintenance.Maintenance, p *maintenance.MaintenancePeriod, probeStart int64) (int64, int64, bool) {
	candidate := dayFloor(probeStart)
	activeSinceDay := dayFloor(m.ActiveSince)

	for candidate >= activeSinceDay {
		t := time.Unix(candidate, 0).UTC()
		month := int(t.Month()) - 1 // 0-indexed to match the bitmask
		if p.Month&(uint16(1)<<uint(month)) != 0 && monthlyDayMatches(p, t, candidate) {
			since := candidate + p.StartTime
			until := minInt64(since+p.Period, m.ActiveUntil)
			return since, until, true
		}
		candidate -= secPerDay
	}
	return 0, 0, false
}

func monthlyDayMatches(p *maintenance.MaintenancePeriod, t time.Time, candidate int64) bool {
	if p.Day != 0 {
		return t.Day() == p.Day
	}
	weekday := isoWeekday(candidate)
	if p.DayOfWeek&(uint8(1)<<uint(weekday)) == 0 {
		return false
	}
	if p.Every == 5 {
		return t.Day()+7 > daysInMonth(t.Year(), t.Month())
	}
	ordinal := (t.Day()-1)/7 + 1
	return ordinal == p.Every
}

// isoWeekday returns 0=Monday .. 6=Sunday for the UTC day containing
// the given epoch-seconds instant.
func isoWeekday(epochSec int64) int {
	wd := time.Unix(epochSec, 0).UTC().Weekday()
	return (int(wd) + 6) % 7
}

func dayFloor(epochSec int64) int64 {
	return epochSec - epochSec%secPerDay
}

// weekFloor returns the start of the Monday 00:00 ISO week containing
// epochSec.
func weekFloor(epochSec int64) int64 {
	day := dayFloor(epochSec)
	return day - int64(isoWeekday(day))*secPerDay
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func normalizeEvery(every int) int {
	if every <= 0 {
		return 1
	}
	return every
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
