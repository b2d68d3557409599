package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DateRange selects an entry of the portal's date dropdown. The value is the
// number of arrow-down presses needed from the default entry.
type DateRange int

const (
	DateRangeThreeDays DateRange = 2
	DateRangeWeek      DateRange = 3
	DateRange2020      DateRange = 8
	DateRange2019      DateRange = 9
	DateRange2018      DateRange = 10
	DateRange2017      DateRange = 11
)

var dateRangeNames = map[string]DateRange{
	"three-days": DateRangeThreeDays,
	"week":       DateRangeWeek,
	"2020":       DateRange2020,
	"2019":       DateRange2019,
	"2018":       DateRange2018,
	"2017":       DateRange2017,
}

// ParseDateRange resolves a preset name such as "week" or "2019".
func ParseDateRange(name string) (DateRange, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if r, ok := dateRangeNames[key]; ok {
		return r, nil
	}
	return 0, fmt.Errorf("unknown date range %q (expected one of %s)", name, strings.Join(DateRangeNames(), ", "))
}

// DateRangeNames lists the accepted preset names in sorted order.
func DateRangeNames() []string {
	names := make([]string, 0, len(dateRangeNames))
	for n := range dateRangeNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r DateRange) String() string {
	for n, v := range dateRangeNames {
		if v == r {
			return n
		}
	}
	return fmt.Sprintf("DateRange(%d)", int(r))
}

// DefaultSections are the local news sections searched when none are configured.
var DefaultSections = []string{
	"港聞",
	"香港新聞",
	"要聞",
	"突發",
}

// SearchQuery is the portal search form content.
type SearchQuery struct {
	Terms     string
	Sections  []string
	DateRange DateRange
}
