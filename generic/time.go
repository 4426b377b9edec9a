package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - A calendar day (contracts, payslips and leaves are dated)
// =============================================================================

// TimePoint is a calendar day in UTC. The zero value means "no date".
type TimePoint struct {
	Time time.Time
}

// DateLayout is the wire and storage format of a TimePoint.
const DateLayout = "2006-01-02"

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, in t's own location.
func DateOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, err
	}
	return TimePoint{Time: t}, nil
}

func Today() TimePoint {
	return DateOf(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) AddDays(n int) TimePoint {
	return TimePoint{Time: tp.Time.AddDate(0, 0, n)}
}

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (tp TimePoint) IsZero() bool { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	if tp.IsZero() {
		return ""
	}
	return tp.Time.Format(DateLayout)
}

// =============================================================================
// HOLIDAY CALENDAR - Days that are not worked
// =============================================================================

// Holiday is a non-working day used when computing default working hours.
type Holiday struct {
	ID        string
	Date      TimePoint
	Name      string // e.g., "Christmas Day"
	Recurring bool   // same month/day every year
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	IsHoliday(date TimePoint) bool
}

// StaticCalendar answers holiday lookups from an in-memory list.
type StaticCalendar []Holiday

func (c StaticCalendar) IsHoliday(date TimePoint) bool {
	for _, h := range c {
		if h.Recurring {
			if h.Date.Month() == date.Month() && h.Date.Day() == date.Day() {
				return true
			}
			continue
		}
		if h.Date.Equal(date) {
			return true
		}
	}
	return false
}

// IsWorkday reports whether the day is neither a weekend nor a holiday of
// calendar (which may be nil).
func (tp TimePoint) IsWorkday(calendar HolidayCalendar) bool {
	if tp.IsWeekend() {
		return false
	}
	return calendar == nil || !calendar.IsHoliday(tp)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}
func StartOfYear(year int) TimePoint                    { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint                      { return NewTimePoint(year, time.December, 31) }
func StartOfMonth(year int, month time.Month) TimePoint { return NewTimePoint(year, month, 1) }
func EndOfMonth(year int, month time.Month) TimePoint {
	return StartOfMonth(year, month+1).AddDays(-1)
}
