package report

import (
	"fmt"
	"time"
)

// Each period style is walked on a discrete integer axis so the planner can
// stride over any of them the same way:
//
//	DateRange : days since 1970-01-01
//	YearMonth : year*12 + month-1
//	YearWeek  : index of the ISO-week Monday (week 0 starts 1969-12-29)
//	YearOnly  : the year itself
//	TimeRange : Unix seconds, UTC

const secondsPerDay = 24 * 60 * 60

// DayOrdinal returns the day index of the calendar date of t (in t's location).
func DayOrdinal(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

// DayTime is the inverse of DayOrdinal, returning midnight UTC.
func DayTime(o int64) time.Time {
	return time.Unix(o*secondsPerDay, 0).UTC()
}

// MonthOrdinal returns the month index of (year, month).
func MonthOrdinal(year int, month time.Month) int64 {
	return int64(year)*12 + int64(month) - 1
}

// MonthOf is the inverse of MonthOrdinal.
func MonthOf(o int64) (int, time.Month) {
	y := floorDiv(o, 12)
	return int(y), time.Month(o-y*12) + 1
}

// ISOWeeksInYear returns 52 or 53, the number of ISO weeks in isoYear.
func ISOWeeksInYear(isoYear int) int {
	_, w := time.Date(isoYear, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// ISOWeekStart returns the Monday (UTC midnight) starting the given ISO week.
func ISOWeekStart(isoYear, week int) (time.Time, error) {
	if week < 1 || week > ISOWeeksInYear(isoYear) {
		return time.Time{}, fmt.Errorf("ISO year %d has no week %d", isoYear, week)
	}
	jan4 := time.Date(isoYear, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7 // days since Monday
	week1 := jan4.AddDate(0, 0, -offset)
	return week1.AddDate(0, 0, (week-1)*7), nil
}

// WeekOrdinal returns the week index of an ISO (year, week).
func WeekOrdinal(isoYear, week int) (int64, error) {
	monday, err := ISOWeekStart(isoYear, week)
	if err != nil {
		return 0, err
	}
	return floorDiv(DayOrdinal(monday)+3, 7), nil
}

// WeekTime is the inverse of WeekOrdinal, returning the week's Monday.
func WeekTime(o int64) time.Time {
	return DayTime(o*7 - 3)
}

// OrdinalTime returns the instant at which unit o of style begins.
func OrdinalTime(style PeriodStyle, o int64) time.Time {
	switch style {
	case DateRange:
		return DayTime(o)
	case YearMonth:
		y, m := MonthOf(o)
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case YearWeek:
		return WeekTime(o)
	case YearOnly:
		return time.Date(int(o), time.January, 1, 0, 0, 0, 0, time.UTC)
	case TimeRange:
		return time.Unix(o, 0).UTC()
	}
	return time.Time{}
}

// OrdinalLabel renders unit o of style in its natural notation.
func OrdinalLabel(style PeriodStyle, o int64) string {
	t := OrdinalTime(style, o)
	switch style {
	case DateRange:
		return t.Format(DateLayout)
	case YearMonth:
		return t.Format("2006-01")
	case YearWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case YearOnly:
		return fmt.Sprintf("%04d", o)
	case TimeRange:
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(o)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
