// Package report describes the BMRS report surface: the period style each
// report uses, the static catalog of supported reports, the parameters a
// caller supplies for a range, and the request windows the planner emits.
package report

import (
	"fmt"
	"strings"
)

// PeriodStyle is the time-range encoding a report expects.
type PeriodStyle int

const (
	// DateRange reports are addressed by settlement date.
	DateRange PeriodStyle = iota + 1
	// YearMonth reports are addressed by calendar year and month.
	YearMonth
	// YearWeek reports are addressed by ISO year and ISO week.
	YearWeek
	// YearOnly reports are addressed by calendar year.
	YearOnly
	// TimeRange reports are addressed by start/end date and time of day.
	TimeRange
)

var styleNames = map[PeriodStyle]string{
	DateRange: "date_range",
	YearMonth: "year_month",
	YearWeek:  "year_week",
	YearOnly:  "year_only",
	TimeRange: "time_range",
}

// Styles lists every period style in declaration order.
func Styles() []PeriodStyle {
	return []PeriodStyle{DateRange, YearMonth, YearWeek, YearOnly, TimeRange}
}

func (s PeriodStyle) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PeriodStyle(%d)", int(s))
}

// Valid reports whether s is one of the declared styles.
func (s PeriodStyle) Valid() bool {
	_, ok := styleNames[s]
	return ok
}

// MarshalText renders the style by name for JSON and YAML output.
func (s PeriodStyle) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid period style %d", int(s))
	}
	return []byte(s.String()), nil
}

// ParsePeriodStyle is the inverse of PeriodStyle.String.
func ParsePeriodStyle(name string) (PeriodStyle, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range styleNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown period style %q", name)
}

// Params is the generic range parameter map passed to the planner.
// Each period style defines which keys it requires:
//   - DateRange : start_date, end_date
//   - YearMonth : start_year, start_month, end_year, end_month
//   - YearWeek  : start_year, start_week, end_year, end_week (ISO)
//   - YearOnly  : start_year, end_year
//   - TimeRange : start_date, start_time, end_date, end_time
type Params map[string]string

// Param keys.
const (
	ParamStartDate  = "start_date"
	ParamEndDate    = "end_date"
	ParamStartTime  = "start_time"
	ParamEndTime    = "end_time"
	ParamStartYear  = "start_year"
	ParamEndYear    = "end_year"
	ParamStartMonth = "start_month"
	ParamEndMonth   = "end_month"
	ParamStartWeek  = "start_week"
	ParamEndWeek    = "end_week"
	ParamReportName = "report_name"
)

// Date and time-of-day layouts accepted in Params.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// RequiredParams returns the parameter keys a style requires, starts first.
func RequiredParams(style PeriodStyle) []string {
	switch style {
	case DateRange:
		return []string{ParamStartDate, ParamEndDate}
	case YearMonth:
		return []string{ParamStartYear, ParamStartMonth, ParamEndYear, ParamEndMonth}
	case YearWeek:
		return []string{ParamStartYear, ParamStartWeek, ParamEndYear, ParamEndWeek}
	case YearOnly:
		return []string{ParamStartYear, ParamEndYear}
	case TimeRange:
		return []string{ParamStartDate, ParamStartTime, ParamEndDate, ParamEndTime}
	}
	return nil
}

// ValidateParams checks that all required parameters are present in params.
func ValidateParams(params Params, required []string) error {
	for _, key := range required {
		if v, ok := params[key]; !ok || strings.TrimSpace(v) == "" {
			return &InvalidParameterError{Param: key, Reason: "missing required parameter"}
		}
	}
	return nil
}
