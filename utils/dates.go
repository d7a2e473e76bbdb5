package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimeArg parses a timestamp given on the command line. Layouts without
// an offset are read in loc.
func ParseTimeArg(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q (use RFC3339 or \"2006-01-02 15:04\")", s)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddMonthsClamped moves t by n calendar months keeping the day of month of
// anchor, clamped to the last day of the target month. The clock time of t is kept.
func AddMonthsClamped(t time.Time, n int, anchorDay int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := DaysIn(first.Year(), first.Month())
	day := anchorDay
	if day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var weekdayNames = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
}

// ParseWeekdays reads a comma separated list of weekday indexes (0=Monday) or
// three letter English names, e.g. "5,6" or "sat,sun".
func ParseWeekdays(s string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if d, ok := weekdayNames[part[:min(3, len(part))]]; ok && !isDigits(part) {
			days = append(days, d)
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 0 || d > 6 {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
