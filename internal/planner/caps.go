package planner

import (
	"fmt"

	"github.com/seenimoa/bmrs/internal/report"
)

// Caps holds the maximum number of axis units a single request window may
// span, per period style.
type Caps map[report.PeriodStyle]int64

// DefaultCaps returns the per-request spans accepted by the BMRS endpoints:
// one settlement day, one month, one ISO week, one year, and 31 days for
// time-range reports.
func DefaultCaps() Caps {
	return Caps{
		report.DateRange: 1,
		report.YearMonth: 1,
		report.YearWeek:  1,
		report.YearOnly:  1,
		report.TimeRange: 31 * 24 * 60 * 60,
	}
}

// With returns a copy of c with the cap for style replaced.
func (c Caps) With(style report.PeriodStyle, units int64) Caps {
	out := make(Caps, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[style] = units
	return out
}

// Validate checks that every style has a cap of at least one unit.
func (c Caps) Validate() error {
	for _, s := range report.Styles() {
		v, ok := c[s]
		if !ok {
			return fmt.Errorf("planner: no cap for %s", s)
		}
		if v < 1 {
			return fmt.Errorf("planner: cap for %s must be >= 1, got %d", s, v)
		}
	}
	return nil
}

// CapsFromDays builds caps from the calendar-friendly units used in
// configuration. timeRangeDays is converted to seconds.
func CapsFromDays(days, months, weeks, years, timeRangeDays int) Caps {
	return Caps{
		report.DateRange: int64(days),
		report.YearMonth: int64(months),
		report.YearWeek:  int64(weeks),
		report.YearOnly:  int64(years),
		report.TimeRange: int64(timeRangeDays) * 24 * 60 * 60,
	}
}
