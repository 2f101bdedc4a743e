package catalog

import (
	"testing"
	"time"
)

func TestSeasonKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		month time.Month
		year  int
		want  string
	}{
		{name: "january", month: time.January, year: 2026, want: "winter_2026"},
		{name: "february", month: time.February, year: 2026, want: "winter_2026"},
		{name: "march", month: time.March, year: 2026, want: "spring_2026"},
		{name: "may", month: time.May, year: 2026, want: "spring_2026"},
		{name: "june", month: time.June, year: 2026, want: "summer_2026"},
		{name: "august", month: time.August, year: 2026, want: "summer_2026"},
		{name: "september", month: time.September, year: 2026, want: "fall_2026"},
		{name: "november", month: time.November, year: 2026, want: "fall_2026"},
		// December maps to winter of the same calendar year.
		{name: "december", month: time.December, year: 2026, want: "winter_2026"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			at := time.Date(tt.year, tt.month, 15, 12, 0, 0, 0, time.UTC)
			if got := SeasonKey(at); got != tt.want {
				t.Fatalf("SeasonKey(%s %d) = %q, want %q", tt.month, tt.year, got, tt.want)
			}
		})
	}
}
