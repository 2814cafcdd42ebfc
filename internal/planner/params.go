package planner

import (
	"strconv"
	"time"

	"github.com/seenimoa/bmrs/internal/report"
)

// ParamsFromDates expresses the calendar dates start..end in the parameters
// of style. Weeks are ISO weeks; time ranges run from 00:00:00 on start to
// 23:59:59 on end.
func ParamsFromDates(style report.PeriodStyle, start, end time.Time) report.Params {
	switch style {
	case report.DateRange:
		return report.Params{
			report.ParamStartDate: start.Format(report.DateLayout),
			report.ParamEndDate:   end.Format(report.DateLayout),
		}
	case report.YearMonth:
		return report.Params{
			report.ParamStartYear:  strconv.Itoa(start.Year()),
			report.ParamStartMonth: strconv.Itoa(int(start.Month())),
			report.ParamEndYear:    strconv.Itoa(end.Year()),
			report.ParamEndMonth:   strconv.Itoa(int(end.Month())),
		}
	case report.YearWeek:
		sy, sw := start.ISOWeek()
		ey, ew := end.ISOWeek()
		return report.Params{
			report.ParamStartYear: strconv.Itoa(sy),
			report.ParamStartWeek: strconv.Itoa(sw),
			report.ParamEndYear:   strconv.Itoa(ey),
			report.ParamEndWeek:   strconv.Itoa(ew),
		}
	case report.YearOnly:
		return report.Params{
			report.ParamStartYear: strconv.Itoa(start.Year()),
			report.ParamEndYear:   strconv.Itoa(end.Year()),
		}
	case report.TimeRange:
		return report.Params{
			report.ParamStartDate: start.Format(report.DateLayout),
			report.ParamStartTime: "00:00:00",
			report.ParamEndDate:   end.Format(report.DateLayout),
			report.ParamEndTime:   "23:59:59",
		}
	}
	return report.Params{}
}

// ParseDates parses two YYYY-MM-DD strings into params for style. Errors are
// reported against the start_date and end_date keys.
func ParseDates(style report.PeriodStyle, start, end string) (report.Params, error) {
	s, err := time.Parse(report.DateLayout, start)
	if err != nil {
		return nil, &report.InvalidParameterError{Param: report.ParamStartDate, Value: start, Reason: "expected YYYY-MM-DD"}
	}
	e, err := time.Parse(report.DateLayout, end)
	if err != nil {
		return nil, &report.InvalidParameterError{Param: report.ParamEndDate, Value: end, Reason: "expected YYYY-MM-DD"}
	}
	return ParamsFromDates(style, s, e), nil
}

// PlanDates plans name over the calendar dates start..end, translating them
// into the report's own period style first.
func (p *Planner) PlanDates(name, start, end string) ([]report.Window, error) {
	d, err := p.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	params, err := ParseDates(d.Style, start, end)
	if err != nil {
		return nil, err
	}
	return p.PlanStyle(d.Name, d.Style, params)
}
