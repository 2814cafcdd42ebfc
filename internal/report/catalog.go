package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Descriptor maps a report name to the period style its endpoint expects.
type Descriptor struct {
	Name        string      `json:"name"`
	Style       PeriodStyle `json:"style"`
	Description string      `json:"description,omitempty"`
}

// Catalog is a read-only lookup table of report descriptors. It is built once
// and shared by pointer; nothing mutates it after NewCatalog returns.
type Catalog struct {
	byName map[string]Descriptor
	names  []string // sorted
}

var reportNamePattern = regexp.MustCompile(`^B[0-9]+$`)

// NormalizeName upper-cases and trims a report name and checks it against the
// "B" + digits pattern.
func NormalizeName(name string) (string, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !reportNamePattern.MatchString(n) {
		return "", &InvalidParameterError{
			Param:  ParamReportName,
			Value:  name,
			Reason: `report name must be "B" followed by digits`,
		}
	}
	return n, nil
}

// NewCatalog builds a catalog from descs. Names are normalized; duplicates
// and invalid styles are rejected.
func NewCatalog(descs []Descriptor) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		name, err := NormalizeName(d.Name)
		if err != nil {
			return nil, err
		}
		if !d.Style.Valid() {
			return nil, fmt.Errorf("report %s: invalid period style %d", name, int(d.Style))
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("report %s registered twice", name)
		}
		d.Name = name
		c.byName[name] = d
		c.names = append(c.names, name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Lookup resolves a report name to its descriptor.
func (c *Catalog) Lookup(name string) (Descriptor, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return Descriptor{}, err
	}
	d, ok := c.byName[n]
	if !ok {
		return Descriptor{}, &InvalidParameterError{
			Param:  ParamReportName,
			Value:  name,
			Reason: "report is not supported",
		}
	}
	return d, nil
}

// List returns all descriptors sorted by name.
func (c *Catalog) List() []Descriptor {
	out := make([]Descriptor, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.byName[n])
	}
	return out
}

// ByStyle returns the descriptors using style, sorted by name.
func (c *Catalog) ByStyle(style PeriodStyle) []Descriptor {
	var out []Descriptor
	for _, n := range c.names {
		if d := c.byName[n]; d.Style == style {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of reports in the catalog.
func (c *Catalog) Len() int { return len(c.names) }

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog(defaultDescriptors())
	if err != nil {
		panic(fmt.Sprintf("report: default catalog: %v", err))
	}
	return c
})

// DefaultCatalog returns the catalog of reports supported by the BMRS
// transparency API. It is constructed on first use.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

func defaultDescriptors() []Descriptor {
	var descs []Descriptor
	add := func(style PeriodStyle, names ...string) {
		for _, n := range names {
			descs = append(descs, Descriptor{Name: n, Style: style, Description: reportTitles[n]})
		}
	}

	// Settlement date reports (SettlementDate + Period=*).
	add(DateRange,
		"B1720", "B1730", "B1740", "B1750", "B1760", "B1770", "B1780",
		"B1810", "B01820", "B01830", "B0610", "B0620", "B1430", "B1440",
		"B1610", "B1620", "B1630", "B1320",
	)
	add(YearMonth, "B1790", "B0640", "B1330")
	add(YearWeek, "B0630")
	add(YearOnly, "B0650", "B0810", "B1410", "B1420", "B0910")
	add(TimeRange,
		"B0710", "B0720", "B1010", "B1020", "B1030", "B1510", "B1520",
		"B1530", "B1540",
	)
	return descs
}

var reportTitles = map[string]string{
	"B0610": "Actual total load per bidding zone",
	"B0620": "Day-ahead total load forecast per bidding zone",
	"B0630": "Week-ahead total load forecast per bidding zone",
	"B0640": "Month-ahead total load forecast per bidding zone",
	"B0650": "Year-ahead total load forecast per bidding zone",
	"B0710": "Planned unavailability of consumption units",
	"B0720": "Changes in actual availability of consumption units",
	"B0810": "Year-ahead forecast margin",
	"B0910": "Expansion and dismantling projects",
	"B1010": "Planned unavailability in the transmission grid",
	"B1020": "Changes in actual availability in the transmission grid",
	"B1030": "Changes in actual availability of offshore grid infrastructure",
	"B1320": "Congestion management measures countertrading",
	"B1330": "Congestion management measures costs of congestion management",
	"B1410": "Installed generation capacity aggregated",
	"B1420": "Installed generation capacity per unit",
	"B1430": "Day-ahead aggregated generation",
	"B1440": "Generation forecasts for wind and solar",
	"B1510": "Planned unavailability of generation units",
	"B1520": "Changes in actual availability of generation units",
	"B1530": "Planned unavailability of production units",
	"B1540": "Changes in actual availability of production units",
	"B1610": "Actual generation output per generation unit",
	"B1620": "Actual aggregated generation per type",
	"B1630": "Actual or estimated wind and solar power generation",
	"B1720": "Amount of balancing reserves under contract service",
	"B1730": "Prices of procured balancing reserves service",
	"B1740": "Accepted aggregated offers",
	"B1750": "Activated balancing energy",
	"B1760": "Prices of activated balancing energy",
	"B1770": "Imbalance prices",
	"B1780": "Aggregated imbalance volumes",
	"B1790": "Financial expenses and income for balancing",
	"B1810": "Cross-border balancing volumes of exchanged bids and offers",
	"B01820": "Cross-border balancing prices",
	"B01830": "Cross-border balancing energy activated",
}
