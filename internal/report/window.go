package report

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Window is one upstream query: an inclusive range [From, To] of units on the
// report's period-style axis. The API key is attached by the client when the
// request is built.
type Window struct {
	Report string
	Style  PeriodStyle
	From   int64
	To     int64
}

// Units returns the number of axis units the window spans.
func (w Window) Units() int64 { return w.To - w.From + 1 }

// StartTime is the instant the window's first unit begins.
func (w Window) StartTime() time.Time { return OrdinalTime(w.Style, w.From) }

// EndTime is the instant the window's last unit begins.
func (w Window) EndTime() time.Time { return OrdinalTime(w.Style, w.To) }

// Labels renders the first and last unit of the window.
func (w Window) Labels() (string, string) {
	return OrdinalLabel(w.Style, w.From), OrdinalLabel(w.Style, w.To)
}

func (w Window) String() string {
	from, to := w.Labels()
	return fmt.Sprintf("%s[%s..%s]", w.Report, from, to)
}

// Values returns the window's period fields as upstream query parameters.
// Single-unit windows use the upstream's single-period parameters; wider
// windows (only produced when caps are raised) use From*/To* pairs.
func (w Window) Values() url.Values {
	v := url.Values{}
	single := w.From == w.To

	switch w.Style {
	case DateRange:
		if single {
			v.Set("SettlementDate", DayTime(w.From).Format(DateLayout))
		} else {
			v.Set("FromSettlementDate", DayTime(w.From).Format(DateLayout))
			v.Set("ToSettlementDate", DayTime(w.To).Format(DateLayout))
		}
		v.Set("Period", "*")

	case YearMonth:
		fy, fm := MonthOf(w.From)
		if single {
			v.Set("Year", strconv.Itoa(fy))
			v.Set("Month", monthAbbrev(fm))
		} else {
			ty, tm := MonthOf(w.To)
			v.Set("FromYear", strconv.Itoa(fy))
			v.Set("FromMonth", monthAbbrev(fm))
			v.Set("ToYear", strconv.Itoa(ty))
			v.Set("ToMonth", monthAbbrev(tm))
		}

	case YearWeek:
		fy, fw := WeekTime(w.From).ISOWeek()
		if single {
			v.Set("Year", strconv.Itoa(fy))
			v.Set("Week", fmt.Sprintf("%02d", fw))
		} else {
			ty, tw := WeekTime(w.To).ISOWeek()
			v.Set("FromYear", strconv.Itoa(fy))
			v.Set("FromWeek", fmt.Sprintf("%02d", fw))
			v.Set("ToYear", strconv.Itoa(ty))
			v.Set("ToWeek", fmt.Sprintf("%02d", tw))
		}

	case YearOnly:
		if single {
			v.Set("Year", strconv.FormatInt(w.From, 10))
		} else {
			v.Set("FromYear", strconv.FormatInt(w.From, 10))
			v.Set("ToYear", strconv.FormatInt(w.To, 10))
		}

	case TimeRange:
		start, end := w.StartTime(), w.EndTime()
		v.Set("StartDate", start.Format(DateLayout))
		v.Set("StartTime", start.Format(TimeLayout))
		v.Set("EndDate", end.Format(DateLayout))
		v.Set("EndTime", end.Format(TimeLayout))
	}
	return v
}

func monthAbbrev(m time.Month) string {
	return m.String()[:3]
}
