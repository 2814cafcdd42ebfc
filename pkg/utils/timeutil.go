package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embedded Europe/London rules
)

// UK is the Europe/London location the GB settlement clock runs on.
var UK *time.Location

func init() {
	var err error
	UK, err = time.LoadLocation("Europe/London")
	if err != nil {
		panic("utils: load Europe/London: " + err.Error())
	}
}

// SettlementPeriodLength is the length of one settlement period.
const SettlementPeriodLength = 30 * time.Minute

// NowUK returns the current time on the UK clock.
func NowUK() time.Time {
	return time.Now().In(UK)
}

// ToUK converts a time.Time to the UK clock.
func ToUK(t time.Time) time.Time {
	return t.In(UK)
}

// SettlementDayStart returns local midnight at the start of the settlement
// day whose calendar date is date's year, month and day.
func SettlementDayStart(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, UK)
}

// SettlementPeriodsInDay returns the number of settlement periods in the
// settlement day of date: 48 normally, 46 on the spring clock change and 50
// on the autumn one.
func SettlementPeriodsInDay(date time.Time) int {
	start := SettlementDayStart(date)
	y, m, d := date.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, UK)
	return int(next.Sub(start) / SettlementPeriodLength)
}

// SettlementPeriodStart returns the UTC instant at which settlement period sp
// (1-based) of the settlement day date begins.
func SettlementPeriodStart(date time.Time, sp int) (time.Time, error) {
	if n := SettlementPeriodsInDay(date); sp < 1 || sp > n {
		return time.Time{}, fmt.Errorf("settlement period %d out of range 1..%d for %s",
			sp, n, date.Format("2006-01-02"))
	}
	start := SettlementDayStart(date).UTC()
	return start.Add(time.Duration(sp-1) * SettlementPeriodLength), nil
}

// SettlementPeriodAt returns the settlement date (midnight UTC of its
// calendar date) and the 1-based settlement period containing t.
func SettlementPeriodAt(t time.Time) (time.Time, int) {
	local := t.In(UK)
	dayStart := SettlementDayStart(local)
	sp := int(t.Sub(dayStart)/SettlementPeriodLength) + 1
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), sp
}

// ParseSettlementDate parses the date formats BMRS uses for settlement dates:
// "2006-01-02", "2006/01/02" and "02/01/2006".
func ParseSettlementDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006/01/02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised settlement date %q", s)
}

// SettlementPeriodTime parses a settlement date and period as they appear in
// a report row and returns the period's UTC start.
func SettlementPeriodTime(date, period string) (time.Time, error) {
	d, err := ParseSettlementDate(date)
	if err != nil {
		return time.Time{}, err
	}
	sp, err := strconv.Atoi(strings.TrimSpace(period))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid settlement period %q", period)
	}
	return SettlementPeriodStart(d, sp)
}

// FormatDateUK formats a time.Time to "2006-01-02" on the UK clock.
func FormatDateUK(t time.Time) string {
	return t.In(UK).Format("2006-01-02")
}

// FormatDateTimeUK formats a time.Time to "2006-01-02 15:04:05 MST" on the UK clock.
func FormatDateTimeUK(t time.Time) string {
	return t.In(UK).Format("2006-01-02 15:04:05 MST")
}
