package report

import (
	"errors"
	"testing"
	"time"
)

// --- Catalog ---

func TestDefaultCatalogStyles(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name  string
		style PeriodStyle
	}{
		{"B1630", DateRange},
		{"b1770", DateRange},
		{"B01820", DateRange},
		{"B0640", YearMonth},
		{"B0630", YearWeek},
		{"B1410", YearOnly},
		{"B1510", TimeRange},
	}
	for _, tt := range tests {
		d, err := c.Lookup(tt.name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.name, err)
		}
		if d.Style != tt.style {
			t.Errorf("Lookup(%q).Style: got %s, want %s", tt.name, d.Style, tt.style)
		}
	}

	if c.Len() != 36 {
		t.Errorf("Len: got %d, want 36", c.Len())
	}
	if got := len(c.ByStyle(YearWeek)); got != 1 {
		t.Errorf("ByStyle(YearWeek): got %d reports, want 1", got)
	}
}

func TestDefaultCatalogIsShared(t *testing.T) {
	if DefaultCatalog() != DefaultCatalog() {
		t.Error("DefaultCatalog should return the same instance")
	}
}

func TestCatalogLookupErrors(t *testing.T) {
	c := DefaultCatalog()
	for _, name := range []string{"", "FUELHH", "B12x", "B9999"} {
		_, err := c.Lookup(name)
		var ipe *InvalidParameterError
		if !errors.As(err, &ipe) {
			t.Errorf("Lookup(%q): expected InvalidParameterError, got %v", name, err)
			continue
		}
		if ipe.Param != ParamReportName {
			t.Errorf("Lookup(%q).Param: got %q", name, ipe.Param)
		}
	}
}

func TestCatalogListSorted(t *testing.T) {
	list := DefaultCatalog().List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Name >= list[i].Name {
			t.Fatalf("List not sorted at %d: %s >= %s", i, list[i-1].Name, list[i].Name)
		}
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Descriptor{
		{Name: "B0001", Style: DateRange},
		{Name: "b0001", Style: YearOnly},
	})
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := NewCatalog([]Descriptor{{Name: "B0001"}}); err == nil {
		t.Fatal("expected invalid style error")
	}
}

// --- Period styles ---

func TestPeriodStyleRoundTrip(t *testing.T) {
	for _, s := range Styles() {
		got, err := ParsePeriodStyle(s.String())
		if err != nil {
			t.Fatalf("ParsePeriodStyle(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("ParsePeriodStyle(%q): got %s", s, got)
		}
	}
	if _, err := ParsePeriodStyle("fortnight"); err == nil {
		t.Error("expected error for unknown style")
	}
}

func TestValidateParams(t *testing.T) {
	err := ValidateParams(Params{ParamStartYear: "2021", ParamEndYear: " "}, RequiredParams(YearOnly))
	var ipe *InvalidParameterError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidParameterError, got %v", err)
	}
	if ipe.Param != ParamEndYear {
		t.Errorf("Param: got %q, want %q", ipe.Param, ParamEndYear)
	}
}

// --- Axis ---

func TestISOWeekStart(t *testing.T) {
	tests := []struct {
		year, week int
		want       string
	}{
		{2021, 1, "2021-01-04"},
		{2020, 53, "2020-12-28"},
		{2026, 1, "2025-12-29"},
	}
	for _, tt := range tests {
		got, err := ISOWeekStart(tt.year, tt.week)
		if err != nil {
			t.Fatalf("ISOWeekStart(%d, %d): %v", tt.year, tt.week, err)
		}
		if got.Format(DateLayout) != tt.want {
			t.Errorf("ISOWeekStart(%d, %d): got %s, want %s", tt.year, tt.week, got.Format(DateLayout), tt.want)
		}
	}
	if _, err := ISOWeekStart(2021, 53); err == nil {
		t.Error("2021 has 52 ISO weeks; expected error for week 53")
	}
}

func TestOrdinalsInvert(t *testing.T) {
	day := time.Date(1969, time.December, 31, 0, 0, 0, 0, time.UTC)
	if got := DayTime(DayOrdinal(day)); !got.Equal(day) {
		t.Errorf("DayTime(DayOrdinal(%s)) = %s", day, got)
	}

	y, m := MonthOf(MonthOrdinal(2021, time.December))
	if y != 2021 || m != time.December {
		t.Errorf("MonthOf: got %d-%d", y, m)
	}

	o, err := WeekOrdinal(2021, 10)
	if err != nil {
		t.Fatal(err)
	}
	wy, ww := WeekTime(o).ISOWeek()
	if wy != 2021 || ww != 10 {
		t.Errorf("WeekTime(WeekOrdinal(2021, 10)).ISOWeek() = %d-W%d", wy, ww)
	}
	next, _ := WeekOrdinal(2021, 11)
	if next != o+1 {
		t.Errorf("consecutive weeks should have consecutive ordinals: %d, %d", o, next)
	}
}

// --- Windows ---

func TestWindowValues(t *testing.T) {
	day := DayOrdinal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC))
	wk, _ := WeekOrdinal(2021, 5)
	// ISO 2026-W01 starts Monday 2025-12-29.
	newYearWk, _ := WeekOrdinal(2026, 1)
	ts := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		name string
		w    Window
		want map[string]string
	}{
		{
			name: "single settlement date",
			w:    Window{Report: "B1630", Style: DateRange, From: day, To: day},
			want: map[string]string{"SettlementDate": "2021-01-01", "Period": "*"},
		},
		{
			name: "settlement date range",
			w:    Window{Report: "B1630", Style: DateRange, From: day, To: day + 2},
			want: map[string]string{"FromSettlementDate": "2021-01-01", "ToSettlementDate": "2021-01-03", "Period": "*"},
		},
		{
			name: "year month",
			w:    Window{Report: "B0640", Style: YearMonth, From: MonthOrdinal(2021, 2), To: MonthOrdinal(2021, 2)},
			want: map[string]string{"Year": "2021", "Month": "Feb"},
		},
		{
			name: "year week",
			w:    Window{Report: "B0630", Style: YearWeek, From: wk, To: wk},
			want: map[string]string{"Year": "2021", "Week": "05"},
		},
		{
			name: "year week sends the ISO year",
			w:    Window{Report: "B0630", Style: YearWeek, From: newYearWk, To: newYearWk},
			want: map[string]string{"Year": "2026", "Week": "01"},
		},
		{
			name: "year",
			w:    Window{Report: "B1410", Style: YearOnly, From: 2020, To: 2020},
			want: map[string]string{"Year": "2020"},
		},
		{
			name: "time range",
			w:    Window{Report: "B1510", Style: TimeRange, From: ts, To: ts + secondsPerDay - 1},
			want: map[string]string{"StartDate": "2021-03-01", "StartTime": "00:00:00", "EndDate": "2021-03-01", "EndTime": "23:59:59"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.w.Values()
			if len(v) != len(tt.want) {
				t.Errorf("got %d params (%v), want %d", len(v), v, len(tt.want))
			}
			for k, want := range tt.want {
				if got := v.Get(k); got != want {
					t.Errorf("%s: got %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestWindowString(t *testing.T) {
	w := Window{Report: "B0640", Style: YearMonth, From: MonthOrdinal(2021, 1), To: MonthOrdinal(2021, 3)}
	if got := w.String(); got != "B0640[2021-01..2021-03]" {
		t.Errorf("String: got %q", got)
	}
	if w.Units() != 3 {
		t.Errorf("Units: got %d, want 3", w.Units())
	}
}

func TestFetchErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := error(&FetchError{Window: Window{Report: "B1770", Style: YearOnly, From: 2021, To: 2021}, StatusCode: 500, Err: inner})
	if !errors.Is(err, inner) {
		t.Error("FetchError should unwrap to its cause")
	}
	if got := err.Error(); got != "fetch B1770[2021..2021]: HTTP 500: boom" {
		t.Errorf("Error: got %q", got)
	}
}
