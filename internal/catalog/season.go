package catalog

import (
	"fmt"
	"time"
)

// SeasonKey derives the catalog's season bucket for the given time:
// "{winter|spring|summer|fall}_{year}".
//
// Convention: December belongs to winter of the SAME calendar year
// (december 2026 -> "winter_2026"), matching the upstream catalog's
// bucketing. Do not roll the year forward without checking the upstream.
func SeasonKey(t time.Time) string {
	var season string
	switch t.Month() {
	case time.December, time.January, time.February:
		season = "winter"
	case time.March, time.April, time.May:
		season = "spring"
	case time.June, time.July, time.August:
		season = "summer"
	default:
		season = "fall"
	}
	return fmt.Sprintf("%s_%d", season, t.Year())
}
