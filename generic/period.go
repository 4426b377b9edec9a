package generic

// =============================================================================
// PERIOD - Inclusive day range shared by contracts, payslips and leave years
// =============================================================================

// Period is an inclusive [Start, End] range of days.
// A nil End in domain types means "open ended"; use OpenPeriod for those.
//
// Examples:
//   - Payslip for May 2025: May 1 - May 31
//   - Leave year 2025: Jan 1 - Dec 31
//   - Contract without end: Start - (open)
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if end.Before(start) {
		return p, ErrInvalidPeriod
	}
	return p, nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Covers returns true if other lies entirely inside p.
func (p Period) Covers(other Period) bool {
	return other.Start.AfterOrEqual(p.Start) && other.End.BeforeOrEqual(p.End)
}

// Overlap returns the intersection of two periods.
func (p Period) Overlap(other Period) (Period, bool) {
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Length is the number of calendar days in the period, both ends included.
func (p Period) Length() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Workdays counts weekdays in the period that are not holidays.
func (p Period) Workdays(calendar HolidayCalendar) int {
	n := 0
	for _, d := range p.Days() {
		if d.IsWorkday(calendar) {
			n++
		}
	}
	return n
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// OPEN PERIOD - Ranges whose end may be unknown (contracts)
// =============================================================================

// OpenPeriod is a period whose End may be nil, meaning it never ends.
type OpenPeriod struct {
	Start TimePoint
	End   *TimePoint
}

// Contains returns true if t is on or after Start and not after End.
func (p OpenPeriod) Contains(t TimePoint) bool {
	if t.Before(p.Start) {
		return false
	}
	return p.End == nil || t.BeforeOrEqual(*p.End)
}

// Intersects reports whether the two ranges share at least one day.
func (p OpenPeriod) Intersects(other OpenPeriod) bool {
	if p.End != nil && p.End.Before(other.Start) {
		return false
	}
	if other.End != nil && other.End.Before(p.Start) {
		return false
	}
	return true
}

// MonthPeriod returns the calendar month containing date.
func MonthPeriod(date TimePoint) Period {
	return Period{
		Start: StartOfMonth(date.Year(), date.Month()),
		End:   EndOfMonth(date.Year(), date.Month()),
	}
}

// PreviousMonth returns the calendar month before the one containing date.
func PreviousMonth(date TimePoint) Period {
	return MonthPeriod(StartOfMonth(date.Year(), date.Month()).AddDays(-1))
}
