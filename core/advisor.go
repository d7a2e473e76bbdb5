package core

import "time"

// Suggest maps each day part to its clock time on date, drops candidates at or
// before now and returns at most max of the rest in day-part order.
func Suggest(date time.Time, parts []DayPart, max int, now time.Time) []time.Time {
	if max <= 0 || len(parts) == 0 {
		return nil
	}
	out := make([]time.Time, 0, min(max, len(parts)))
	for _, p := range parts {
		t, ok := p.At(date)
		if !ok || !t.After(now) {
			continue
		}
		out = append(out, t)
		if len(out) == max {
			break
		}
	}
	return out
}
