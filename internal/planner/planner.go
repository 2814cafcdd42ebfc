// Package planner turns a report name and range parameters into the ordered
// request windows that cover the range without exceeding the per-request
// span the upstream accepts.
package planner

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/bmrs/internal/report"
)

// Planner resolves reports against a catalog and chunks ranges by caps.
// It holds no mutable state and is safe for concurrent use.
type Planner struct {
	catalog *report.Catalog
	caps    Caps
}

// New creates a planner. A nil catalog uses report.DefaultCatalog and nil
// caps use DefaultCaps.
func New(catalog *report.Catalog, caps Caps) (*Planner, error) {
	if catalog == nil {
		catalog = report.DefaultCatalog()
	}
	if caps == nil {
		caps = DefaultCaps()
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	return &Planner{catalog: catalog, caps: caps}, nil
}

// Catalog returns the catalog the planner resolves names against.
func (p *Planner) Catalog() *report.Catalog { return p.catalog }

// Caps returns the per-style window caps.
func (p *Planner) Caps() Caps { return p.caps }

// Plan looks up the period style of name and plans params in that style.
func (p *Planner) Plan(name string, params report.Params) ([]report.Window, error) {
	d, err := p.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return p.PlanStyle(d.Name, d.Style, params)
}

// PlanStyle plans params for name using an explicit period style. The
// returned windows are contiguous, non-overlapping and cover exactly the
// requested range; a zero-length range yields one window.
func (p *Planner) PlanStyle(name string, style report.PeriodStyle, params report.Params) ([]report.Window, error) {
	name, err := report.NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if !style.Valid() {
		return nil, &report.InvalidParameterError{Param: "period_style", Value: style.String(), Reason: "unknown period style"}
	}
	if err := report.ValidateParams(params, report.RequiredParams(style)); err != nil {
		return nil, err
	}

	from, to, err := bounds(style, params)
	if err != nil {
		return nil, err
	}
	if from > to {
		start, end := report.OrdinalLabel(style, from), report.OrdinalLabel(style, to)
		return nil, &report.InvalidParameterError{
			Param:  "range",
			Value:  start + ".." + end,
			Reason: "end precedes start",
		}
	}

	step := p.caps[style]
	windows := make([]report.Window, 0, (to-from)/step+1)
	for s := from; s <= to; s += step {
		e := s + step - 1
		if e > to {
			e = to
		}
		windows = append(windows, report.Window{Report: name, Style: style, From: s, To: e})
	}
	return windows, nil
}

// bounds converts params into inclusive ordinals on the style's axis.
func bounds(style report.PeriodStyle, params report.Params) (int64, int64, error) {
	switch style {
	case report.DateRange:
		start, err := parseDate(params, report.ParamStartDate)
		if err != nil {
			return 0, 0, err
		}
		end, err := parseDate(params, report.ParamEndDate)
		if err != nil {
			return 0, 0, err
		}
		return report.DayOrdinal(start), report.DayOrdinal(end), nil

	case report.YearMonth:
		from, err := monthOrdinal(params, report.ParamStartYear, report.ParamStartMonth)
		if err != nil {
			return 0, 0, err
		}
		to, err := monthOrdinal(params, report.ParamEndYear, report.ParamEndMonth)
		if err != nil {
			return 0, 0, err
		}
		return from, to, nil

	case report.YearWeek:
		from, err := weekOrdinal(params, report.ParamStartYear, report.ParamStartWeek)
		if err != nil {
			return 0, 0, err
		}
		to, err := weekOrdinal(params, report.ParamEndYear, report.ParamEndWeek)
		if err != nil {
			return 0, 0, err
		}
		return from, to, nil

	case report.YearOnly:
		from, err := parseInt(params, report.ParamStartYear, 1, 9999)
		if err != nil {
			return 0, 0, err
		}
		to, err := parseInt(params, report.ParamEndYear, 1, 9999)
		if err != nil {
			return 0, 0, err
		}
		return int64(from), int64(to), nil

	case report.TimeRange:
		from, err := parseDateTime(params, report.ParamStartDate, report.ParamStartTime)
		if err != nil {
			return 0, 0, err
		}
		to, err := parseDateTime(params, report.ParamEndDate, report.ParamEndTime)
		if err != nil {
			return 0, 0, err
		}
		return from.Unix(), to.Unix(), nil
	}
	return 0, 0, fmt.Errorf("planner: unhandled period style %s", style)
}

func parseDate(params report.Params, key string) (time.Time, error) {
	v := strings.TrimSpace(params[key])
	t, err := time.Parse(report.DateLayout, v)
	if err != nil {
		return time.Time{}, &report.InvalidParameterError{Param: key, Value: v, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

func parseDateTime(params report.Params, dateKey, timeKey string) (time.Time, error) {
	d, err := parseDate(params, dateKey)
	if err != nil {
		return time.Time{}, err
	}
	v := strings.TrimSpace(params[timeKey])
	clock, err := time.Parse(report.TimeLayout, v)
	if err != nil {
		return time.Time{}, &report.InvalidParameterError{Param: timeKey, Value: v, Reason: "expected HH:MM:SS"}
	}
	return d.Add(time.Duration(clock.Hour())*time.Hour +
		time.Duration(clock.Minute())*time.Minute +
		time.Duration(clock.Second())*time.Second), nil
}

func parseInt(params report.Params, key string, lo, hi int) (int, error) {
	v := strings.TrimSpace(params[key])
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &report.InvalidParameterError{Param: key, Value: v, Reason: "expected an integer"}
	}
	if n < lo || n > hi {
		return 0, &report.InvalidParameterError{
			Param:  key,
			Value:  v,
			Reason: fmt.Sprintf("must be between %d and %d", lo, hi),
		}
	}
	return n, nil
}

func monthOrdinal(params report.Params, yearKey, monthKey string) (int64, error) {
	y, err := parseInt(params, yearKey, 1, 9999)
	if err != nil {
		return 0, err
	}
	m, err := parseInt(params, monthKey, 1, 12)
	if err != nil {
		return 0, err
	}
	return report.MonthOrdinal(y, time.Month(m)), nil
}

func weekOrdinal(params report.Params, yearKey, weekKey string) (int64, error) {
	y, err := parseInt(params, yearKey, 1, 9999)
	if err != nil {
		return 0, err
	}
	w, err := parseInt(params, weekKey, 1, 53)
	if err != nil {
		return 0, err
	}
	o, err := report.WeekOrdinal(y, w)
	if err != nil {
		return 0, &report.InvalidParameterError{Param: weekKey, Value: params[weekKey], Reason: err.Error()}
	}
	return o, nil
}
